// Package main provides a CLI for interacting with the reelflow server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reelflow/reelflow/pkg/actions"
	"github.com/reelflow/reelflow/pkg/loader"
	"github.com/reelflow/reelflow/pkg/registry"
)

var serverURL string

func main() {
	rootCmd := &cobra.Command{
		Use:   "reelflow-cli",
		Short: "ReelFlow CLI",
		Long:  "Command-line interface for interacting with the ReelFlow server",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// validateCmd checks a workflow definition locally without a server
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a workflow definition file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		// Validate against the built-in action catalog
		catalog := actions.NewDefaultRegistry(actions.Providers{})
		l := loader.NewLoader(catalog)

		def, err := l.Parse(content)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		fmt.Printf("OK: %s (%d nodes, %d edges)\n", def.Name, len(def.Nodes), len(def.Edges))
		return nil
	},
}

// workflowCmd groups workflow management subcommands
func workflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflow definitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []registry.WorkflowInfo
			if err := getJSON("/api/v1/workflows", &infos); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tNODES\tVERSION\tUPDATED")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					info.ID, info.Name, info.NodeCount, info.Version,
					info.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create [file]",
		Short: "Create a workflow from a definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			resp, err := http.Post(serverURL+"/api/v1/workflows", "application/yaml", bytes.NewReader(content))
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusCreated {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server returned %s: %s", resp.Status, body)
			}

			var created struct {
				ID string `json:"id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
				return err
			}
			fmt.Println(created.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [id]",
		Short: "Print a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var def json.RawMessage
			if err := getJSON("/api/v1/workflows/"+args[0], &def); err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, def, "", "  "); err != nil {
				return err
			}
			fmt.Println(pretty.String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequest(http.MethodDelete, serverURL+"/api/v1/workflows/"+args[0], nil)
			if err != nil {
				return err
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusNoContent {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server returned %s: %s", resp.Status, body)
			}
			return nil
		},
	})

	return cmd
}

// runCmd groups run subcommands
func runCmd() *cobra.Command {
	var task string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start and inspect workflow runs",
	}

	start := &cobra.Command{
		Use:   "start [workflow-id]",
		Short: "Start a workflow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]string{"task": task})
			if err != nil {
				return err
			}

			resp, err := http.Post(
				serverURL+"/api/v1/workflows/"+args[0]+"/run",
				"application/json",
				bytes.NewReader(payload),
			)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusAccepted {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server returned %s: %s", resp.Status, body)
			}

			var started struct {
				RunID string `json:"run_id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
				return err
			}
			fmt.Println(started.RunID)
			return nil
		},
	}
	start.Flags().StringVar(&task, "task", "", "Task payload for trigger nodes")
	cmd.AddCommand(start)

	cmd.AddCommand(&cobra.Command{
		Use:   "status [run-id]",
		Short: "Show the status of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record json.RawMessage
			if err := getJSON("/api/v1/runs/"+args[0], &record); err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, record, "", "  "); err != nil {
				return err
			}
			fmt.Println(pretty.String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []struct {
				ID         string `json:"id"`
				WorkflowID string `json:"workflow_id"`
				Status     string `json:"status"`
				StartedAt  string `json:"started_at"`
			}
			if err := getJSON("/api/v1/runs", &records); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWORKFLOW\tSTATUS\tSTARTED")
			for _, record := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					record.ID, record.WorkflowID, record.Status, record.StartedAt)
			}
			return w.Flush()
		},
	})

	return cmd
}

// getJSON fetches a JSON document from the server
func getJSON(path string, out interface{}) error {
	resp, err := http.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
