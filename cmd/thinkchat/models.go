package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/ai/thinkchat/internal/gate"
	"github.com/ai/thinkchat/internal/ollama"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List installed models",
	Long: `List the models installed on the Ollama server. Models from a
thinking-capable family are marked; only those can be used for chat
unless --no-validate is given.

Examples:
  thinkchat models
  thinkchat models --host http://gpu-box:11434
  thinkchat models --json`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
}

// modelRow is one line of the models listing.
type modelRow struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Thinking   bool      `json:"thinking"`
}

var (
	thinkingMark = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render("💭")
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func runModels(cmd *cobra.Command, _ []string) error {
	cfg, _, closer, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	rows := modelRows(models, gate.New(cfg.ThinkingFamilies...))
	if modelsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	printModels(os.Stdout, rows, cfg.Model)
	return nil
}

func modelRows(models []ollama.ModelInfo, g *gate.Gate) []modelRow {
	rows := make([]modelRow, 0, len(models))
	for _, m := range models {
		rows = append(rows, modelRow{
			Name:       m.ID(),
			Size:       m.Size,
			ModifiedAt: m.ModifiedAt,
			Thinking:   g.Supports(m.ID()),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Thinking != rows[j].Thinking {
			return rows[i].Thinking
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func printModels(w io.Writer, rows []modelRow, current string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No models installed. Install one with: ollama pull qwen3")
		return
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r.Name))
	}

	for _, r := range rows {
		mark := "  "
		if r.Thinking {
			mark = thinkingMark
		}
		line := fmt.Sprintf("%s %-*s  %8s", mark, width, r.Name, formatSize(r.Size))
		if r.Name == current {
			line += dimStyle.Render("  (default)")
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, dimStyle.Render("\n💭 = thinking-capable"))
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
