package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/lorekeeper/internal/core/ports/driving"
)

var (
	hashFiles []string
	hashJSON  bool
)

var hashCmd = &cobra.Command{
	Use:   "hash [text...]",
	Short: "Print content fingerprints",
	Long: `Prints the SHA-256 fingerprint used to decide whether a document changed.
Text can be given as arguments, as files with --file, or on stdin.`,
	RunE: runHash,
}

func init() {
	hashCmd.Flags().StringArrayVarP(&hashFiles, "file", "f", nil, "hash the contents of a file (repeatable)")
	hashCmd.Flags().BoolVar(&hashJSON, "json", false, "output the raw response as JSON")
	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, args []string) error {
	if hashService == nil {
		return errors.New("hash service not configured")
	}

	contents := append([]string(nil), args...)
	for _, path := range hashFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		contents = append(contents, string(data))
	}
	if len(contents) == 0 {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		contents = append(contents, string(data))
	}

	var req driving.HashRequest
	if len(contents) == 1 {
		req.Content = &contents[0]
	} else {
		req.Contents = contents
	}

	resp := hashService.Hash(req)
	if hashJSON {
		return printJSON(cmd, resp)
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	if resp.Hash != "" {
		cmd.Println(resp.Hash)
		return nil
	}
	for _, h := range resp.Hashes {
		cmd.Println(h)
	}
	return nil
}
