package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/orsg/prisme/internal/catalog"
	"github.com/orsg/prisme/internal/engine"
	"github.com/orsg/prisme/internal/generation"
	"github.com/orsg/prisme/internal/pkg/httpretry"
	"github.com/orsg/prisme/internal/storage"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List configured datasets",
	Args:  cobra.NoArgs,
	RunE:  listDatasets,
}

var checkCSVCmd = &cobra.Command{
	Use:   "check-csv [dataset]",
	Short: "Report which CSV sources of a dataset are present",
	Args:  cobra.ExactArgs(1),
	RunE:  checkCSV,
}

var yearsCmd = &cobra.Command{
	Use:   "years [dataset]",
	Short: "Ask the report engine which years have data",
	Args:  cobra.ExactArgs(1),
	RunE:  availableYears,
}

var generateCmd = &cobra.Command{
	Use:   "generate [dataset] [year]",
	Short: "Generate one report and wait for it",
	Long: `Generates the report of a dataset for a year (YYYY) or a period (YYYY-YYYY).

Examples:
  prismectl generate educ 2022
  prismectl generate sae 2018-2020 --server http://localhost:3001`,
	Args: cobra.ExactArgs(2),
	RunE: generate,
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Make a running server re-read its themes document",
	Args:  cobra.NoArgs,
	RunE:  reload,
}

func listDatasets(cmd *cobra.Command, args []string) error {
	var views map[string]catalog.DatasetView
	var ids []string
	if serverURL != "" {
		var body struct {
			Datasets map[string]catalog.DatasetView `json:"datasets"`
		}
		if err := callServer(cmd.Context(), http.MethodGet, "/datasets", nil, &body); err != nil {
			return err
		}
		views = body.Datasets
		for id := range views {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	} else {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		views, ids = c.Datasets(), c.IDs()
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFILE\tSHEETS\tVARIABLES")
	for _, id := range ids {
		v := views[id]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", v.ID, v.Name, v.FileName, strings.Join(v.Sheets, ","), len(v.Variables))
	}
	return tw.Flush()
}

func checkCSV(cmd *cobra.Command, args []string) error {
	if serverURL != "" {
		var body map[string]interface{}
		if err := callServer(cmd.Context(), http.MethodGet, "/check-csv", url.Values{"dataset": {args[0]}}, &body); err != nil {
			return err
		}
		return printJSON(cmd, body)
	}

	c, err := loadCatalog()
	if err != nil {
		return err
	}
	av, err := c.CheckCSV(args[0], cfg.Paths.CSVSourcesDir)
	if err != nil {
		return err
	}
	return printJSON(cmd, av)
}

func availableYears(cmd *cobra.Command, args []string) error {
	if serverURL != "" {
		var body map[string]interface{}
		if err := callServer(cmd.Context(), http.MethodGet, "/available-years", url.Values{"dataset": {args[0]}}, &body); err != nil {
			return err
		}
		return printJSON(cmd, body)
	}

	c, err := loadCatalog()
	if err != nil {
		return err
	}
	if _, ok := c.Lookup(args[0]); !ok {
		return fmt.Errorf("%w: %s", catalog.ErrNotFound, args[0])
	}
	eng, err := localEngine()
	if err != nil {
		return err
	}
	years, err := eng.AvailableYears(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{"dataset": args[0], "years": years})
}

func generate(cmd *cobra.Command, args []string) error {
	dataset, year := args[0], args[1]
	if err := generation.ValidateRequest(dataset, year); err != nil {
		return err
	}

	if serverURL != "" {
		var body map[string]interface{}
		q := url.Values{"theme": {dataset}, "year": {year}}
		err := callServer(cmd.Context(), http.MethodPost, "/generate", q, &body)
		if body != nil {
			_ = printJSON(cmd, body)
		}
		return err
	}

	c, err := loadCatalog()
	if err != nil {
		return err
	}
	if _, ok := c.Lookup(dataset); !ok {
		return fmt.Errorf("%w: %s", catalog.ErrNotFound, dataset)
	}
	out, err := storage.NewOutputDir(cfg.Paths.OutputDir)
	if err != nil {
		return err
	}
	eng, err := localEngine()
	if err != nil {
		return err
	}

	orch := generation.New(eng, generation.Options{OutputDir: out.Path(), MaxLogLines: cfg.History.MaxLogLines})
	res, err := orch.Run(cmd.Context(), dataset, year)
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("generation failed: %s", res.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "File generated: %s\n", filepath.Join(out.Path(), res.Filename))
	return nil
}

func reload(cmd *cobra.Command, args []string) error {
	if serverURL == "" {
		return errors.New("reload needs --server")
	}
	var body map[string]interface{}
	if err := callServer(cmd.Context(), http.MethodPost, "/reload-config", nil, &body); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%v (version %v, %v datasets)\n", body["message"], body["version"], body["datasets"])
	return nil
}

func localEngine() (*engine.ProcessEngine, error) {
	outDir, err := filepath.Abs(cfg.Paths.OutputDir)
	if err != nil {
		return nil, err
	}
	csvDir, err := filepath.Abs(cfg.Paths.CSVSourcesDir)
	if err != nil {
		return nil, err
	}
	return engine.NewProcessEngine(cfg.Engine, outDir, csvDir)
}

// callServer sends one request to the running server and decodes its JSON
// answer into v. Non-2xx answers are errors carrying the server message;
// v is still filled when the body is JSON.
func callServer(ctx context.Context, method, path string, q url.Values, v interface{}) error {
	u, err := url.Parse(strings.TrimRight(serverURL, "/") + path)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return err
	}
	if path == "/reload-config" {
		req.Header.Set(httpretry.IdempotentHeader, "1")
	}

	resp, err := httpretry.NewRetryClient(nil, 3).Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	decodeErr := json.Unmarshal(data, v)

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}
