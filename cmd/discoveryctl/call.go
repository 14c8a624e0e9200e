package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RegistryAccord/discovery-go/internal/discovery"
	"github.com/RegistryAccord/discovery-go/internal/media"
	"github.com/RegistryAccord/discovery-go/internal/transport"
)

var (
	filePath string
	metadata string
)

func init() {
	Root.AddCommand(callCommand, operationsCommand)
	flags := callCommand.Flags()
	flags.StringVar(&filePath, "file", "", "Upload source: a local path, - for stdin, or s3://bucket/key")
	flags.StringVar(&metadata, "metadata", "", "Document metadata as JSON text")
}

var callCommand = &cobra.Command{
	Use:   "call operation [key=value ...]",
	Short: "Build and send one operation",
	Long: strings.ReplaceAll(`Builds the request for an operation from key=value parameters and sends it.

Parameter keys are the wire names, for example

    discoveryctl call getCollection environment_id=env collection_id=col
    discoveryctl call query environment_id=env collection_id=col \
        natural_language_query="how do I" count=5 sort=+date,-score
    discoveryctl call addDocument environment_id=env collection_id=col \
        --file report.pdf --metadata '{"owner":"ops"}'

With |--dry-run| the request is printed as JSON and nothing is sent. Run
|discoveryctl operations| for the list of operations.
`, "|", "`"),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, ok := discovery.ParseOperation(args[0])
		if !ok {
			return fmt.Errorf("unknown operation %q", args[0])
		}
		params, err := parseParams(args[1:])
		if err != nil {
			return err
		}
		file, closeFile, err := openFile(ctx, current, filePath)
		if err != nil {
			return err
		}
		defer closeFile()

		req, err := buildRequest(id, params, file, metadata)
		if err != nil {
			return err
		}
		c, err := current.newClient(ctx)
		if err != nil {
			return err
		}
		d, err := c.Describe(req)
		if err != nil {
			return err
		}
		if dryRun {
			return printJSON(cmd.OutOrStdout(), d.Summary())
		}

		resp, err := transport.Wait(ctx, transport.Func(c.Send), d)
		if err != nil {
			return err
		}
		return printBody(cmd.OutOrStdout(), resp.Body)
	},
}

var operationsCommand = &cobra.Command{
	Use:   "operations",
	Short: "List the operations the client can build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, id := range discovery.Operations() {
			op, _ := discovery.Lookup(id)
			fmt.Fprintf(out, "%-22s %-6s %s\n", op.Name, op.Method, op.Path)
		}
		return nil
	},
}

// openFile resolves the --file flag. The returned func releases the source.
func openFile(ctx context.Context, a *app, path string) (interface{}, func(), error) {
	nothing := func() {}
	switch {
	case path == "":
		return nil, nothing, nil
	case path == "-":
		return os.Stdin, nothing, nil
	case strings.HasPrefix(path, "s3://"):
		bucket, key, ok := media.ParseURI(path)
		if !ok {
			return nil, nothing, fmt.Errorf("invalid S3 URI %q", path)
		}
		s3c, err := media.NewS3Client(ctx, a.cfg.S3Endpoint, a.cfg.S3Region, a.cfg.S3AccessKey, a.cfg.S3SecretKey)
		if err != nil {
			return nil, nothing, err
		}
		src := s3c.Open(ctx, bucket, key)
		return src, func() { src.Close() }, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nothing, err
		}
		return f, func() { f.Close() }, nil
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printBody pretty-prints JSON bodies and copies anything else verbatim.
func printBody(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
