package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "lanekb",
	Short: "lanekb - knowledge base retrieval engine",
	Long: `lanekb ingests heterogeneous documents (CSV, XLSX, PDF, DOCX, text)
into per-knowledge-base hybrid indices and serves question-answering
retrieval over HTTP and websocket chat sessions.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./lanekb.yaml)")
}
