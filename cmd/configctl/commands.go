package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"ConfigService/pkg/auth"
	"ConfigService/pkg/homescreen"
	"ConfigService/pkg/journal"
	"ConfigService/signer"
)

var (
	signBody     string
	signBodyFile string
	dataFile     string
	exportOut    string
)

var signCmd = &cobra.Command{
	Use:   "sign <method> <path>",
	Short: "Print the auth headers for one request",
	Long: `Prints X-API-Key, X-User-Id, X-Signature and X-Timestamp for a request,
signed over METHOD:PATH:BODY:TIMESTAMP with the current time. The query
string is not part of the signed path. The body must be sent byte for byte
as given here.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.APIKey == "" || cfg.SigningSecret == "" {
			return errors.New("CONFIG_SERVICE_API_KEY and SIGNATURE_SECRET are required")
		}
		if cfg.UserID == "" {
			return errors.New("a user id is required: pass --user or set CONFIG_USER_ID")
		}
		body := signBody
		if signBodyFile != "" {
			b, err := readInput(signBodyFile)
			if err != nil {
				return err
			}
			body = string(b)
		}

		method := strings.ToUpper(args[0])
		ts := signer.Timestamp(time.Now())
		sig := signer.New(cfg.SigningSecret).Sign(method, signer.NormalizePath(args[1]), body, ts)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s: %s\n", auth.HeaderAPIKey, cfg.APIKey)
		fmt.Fprintf(out, "%s: %s\n", auth.HeaderUserID, cfg.UserID)
		fmt.Fprintf(out, "%s: %s\n", auth.HeaderSignature, sig)
		fmt.Fprintf(out, "%s: %s\n", auth.HeaderTimestamp, ts)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's configurations, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.cancel()
		list, err := s.cl.List(s.ctx, s.userID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), list)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.cancel()
		cfg, err := s.cl.Get(s.ctx, s.userID, args[0])
		if err != nil {
			return err
		}
		if cfg == nil {
			return errors.Newf("configuration %s not found", args[0])
		}
		return printJSON(cmd.OutOrStdout(), cfg)
	},
}

var createCmd = &cobra.Command{
	Use:   "create -f <file>",
	Short: "Create a configuration from a JSON file of configuration data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readConfig(dataFile)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.cancel()
		created, err := s.cl.Create(s.ctx, s.userID, data)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), created)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id> -f <file>",
	Short: "Replace a configuration's data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readConfig(dataFile)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.cancel()
		updated, err := s.cl.Update(s.ctx, s.userID, args[0], data)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), updated)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.cancel()
		ok, err := s.cl.Delete(s.ctx, s.userID, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return errors.Newf("configuration %s not found", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [<id>]",
	Short: "Write configuration data as JSON",
	Long: `With an id, writes that configuration's data object. Without one, writes
an array with the data of every configuration the user owns. The output can
be fed back to import.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.cancel()

		var payload any
		if len(args) == 1 {
			cfg, err := s.cl.Get(s.ctx, s.userID, args[0])
			if err != nil {
				return err
			}
			if cfg == nil {
				return errors.Newf("configuration %s not found", args[0])
			}
			payload = cfg.Data
		} else {
			list, err := s.cl.List(s.ctx, s.userID)
			if err != nil {
				return err
			}
			all := make([]homescreen.Config, 0, len(list))
			for _, cfg := range list {
				all = append(all, cfg.Data)
			}
			payload = all
		}

		if exportOut == "" || exportOut == "-" {
			return printJSON(cmd.OutOrStdout(), payload)
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		if err := printJSON(f, payload); err != nil {
			_ = f.Close()
			return err
		}
		return errors.Wrap(f.Close(), "write output file")
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Create configurations from an export",
	Long: `Reads a data object or an array of data objects, as written by export,
validates all of them, then creates one configuration per object.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readInput(args[0])
		if err != nil {
			return err
		}
		items, err := splitImport(raw)
		if err != nil {
			return err
		}
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.cancel()
		for i, data := range items {
			created, err := s.cl.Create(s.ctx, s.userID, data)
			if err != nil {
				return errors.Wrapf(err, "import item %d", i)
			}
			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
		}
		return nil
	},
}

var journalCmd = &cobra.Command{
	Use:   "journal <path>",
	Short: "Print a service change journal, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := journal.ReadAll(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, r := range recs {
			fmt.Fprintf(out, "%s\t%-6s\t%s\t%s\t%s\n",
				r.At.UTC().Format(homescreen.TimeLayout), r.Op, r.UserID, r.ID, r.Digest)
		}
		return nil
	},
}

func init() {
	signCmd.Flags().StringVarP(&signBody, "data", "d", "", "request body")
	signCmd.Flags().StringVarP(&signBodyFile, "data-file", "f", "", "read the request body from a file (- for stdin)")

	for _, c := range []*cobra.Command{createCmd, updateCmd} {
		c.Flags().StringVarP(&dataFile, "file", "f", "", "JSON file with the configuration data (- for stdin)")
		_ = c.MarkFlagRequired("file")
	}
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "write to a file instead of stdout")

	rootCmd.AddCommand(signCmd, listCmd, getCmd, createCmd, updateCmd, deleteCmd, exportCmd, importCmd, journalCmd)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return b, errors.Wrap(err, "read stdin")
	}
	b, err := os.ReadFile(path)
	return b, errors.Wrap(err, "read file")
}

// readConfig loads and validates one data object, so bad input fails
// before anything is signed or sent.
func readConfig(path string) (homescreen.Config, error) {
	raw, err := readInput(path)
	if err != nil {
		return homescreen.Config{}, err
	}
	return homescreen.Decode(raw)
}

func splitImport(raw []byte) ([]homescreen.Config, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		data, err := homescreen.Decode(trimmed)
		if err != nil {
			return nil, err
		}
		return []homescreen.Config{data}, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errors.Wrap(err, "parse import file")
	}
	out := make([]homescreen.Config, 0, len(items))
	for i, item := range items {
		data, err := homescreen.Decode(item)
		if err != nil {
			return nil, errors.Wrapf(err, "item %d", i)
		}
		out = append(out, data)
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "write output")
}
