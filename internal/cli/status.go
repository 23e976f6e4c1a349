package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

var statusCached bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display mirrored tasks grouped by status",
	Long: `Display the mirrored task list organized by status.

With --cached, read the persisted snapshot instead of the live store. The
snapshot is only served while it is fresh; an expired snapshot reports as
absent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var tasks []models.Task

		if statusCached {
			if Cache == nil {
				return fmt.Errorf("cache not initialized")
			}
			cached, ok := Cache.GetTasks()
			if !ok {
				fmt.Println("No fresh snapshot available.")
				return nil
			}
			tasks = cached
		} else {
			if Store == nil {
				return fmt.Errorf("task store not initialized")
			}
			tasks = Store.All()
		}

		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		grouped := make(map[models.TaskStatus][]models.Task)
		for _, task := range tasks {
			grouped[task.Status] = append(grouped[task.Status], task)
		}

		for _, status := range []models.TaskStatus{models.StatusPending, models.StatusCompleted} {
			if group := grouped[status]; len(group) > 0 {
				printStatusGroup(string(status), group)
				fmt.Println()
			}
		}

		return nil
	},
}

// printStatusGroup prints a table of tasks under a status heading.
func printStatusGroup(status string, tasks []models.Task) {
	fmt.Printf("== %s (%d) ==\n", strings.ToUpper(status), len(tasks))
	fmt.Printf("  %-24s %-8s %-12s %-6s %s\n", "ID", "PRI", "DUE", "TIME", "TITLE")
	fmt.Printf("  %-24s %-8s %-12s %-6s %s\n", "----", "---", "----", "----", "-----")
	for _, task := range tasks {
		id := task.ID
		if id == "" {
			id = "(pending)"
		}
		fmt.Printf("  %-24s %-8s %-12s %-6s %s\n", id, task.Priority, task.DueDate, task.DueTime, task.Title)
	}
}

func init() {
	statusCmd.Flags().BoolVar(&statusCached, "cached", false, "read the persisted snapshot instead of the live store")
	rootCmd.AddCommand(statusCmd)
}
