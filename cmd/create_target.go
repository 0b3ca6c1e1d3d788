package cmd

import (
	"fmt"

	"github.com/sitewarden/sitewarden/db"
	"github.com/spf13/cobra"
)

var newTargetURL string
var newTargetName string
var newTargetCategory string
var newTargetPriority string
var newTargetFrequency string
var newTargetTimeout int
var newTargetMaxRetries int

// createTargetCmd represents the create target command
var createTargetCmd = &cobra.Command{
	Use:     "target",
	Aliases: []string{"t"},
	Short:   "Register a new monitoring target",
	Long: `Registers a website for scheduled scanning. Scan cadence, priority,
timeout and retry budget default from the target category and can be
overridden per target.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if newTargetURL == "" {
			return fmt.Errorf("target url cannot be empty")
		}
		if newTargetName == "" {
			newTargetName = newTargetURL
		}

		target := db.Target{
			URL:      newTargetURL,
			Name:     newTargetName,
			Category: db.TargetCategory(newTargetCategory),
			Active:   true,
		}
		if newTargetPriority != "" {
			target.Priority = &newTargetPriority
		}
		if newTargetFrequency != "" {
			target.ScanFrequency = &newTargetFrequency
		}
		if newTargetTimeout > 0 {
			target.ScanTimeout = &newTargetTimeout
		}
		if newTargetMaxRetries > 0 {
			target.MaxRetries = &newTargetMaxRetries
		}

		store, err := db.Connect()
		if err != nil {
			return err
		}
		defer store.Close()

		created, err := store.CreateTarget(&target)
		if err != nil {
			return fmt.Errorf("error creating target: %v", err)
		}
		fmt.Println("Target created successfully!")
		fmt.Println("ID: ", created.ID)
		return nil
	},
}

func init() {
	createCmd.AddCommand(createTargetCmd)

	createTargetCmd.Flags().StringVarP(&newTargetURL, "url", "u", "", "Target URL")
	createTargetCmd.Flags().StringVarP(&newTargetName, "name", "n", "", "Target name")
	createTargetCmd.Flags().StringVarP(&newTargetCategory, "category", "c", "other", "Target category (ecommerce, government, healthcare, finance, education, news, blog, portfolio, corporate, other)")
	createTargetCmd.Flags().StringVar(&newTargetPriority, "priority", "", "Priority tier override (critical, high, medium, low, maintenance)")
	createTargetCmd.Flags().StringVar(&newTargetFrequency, "frequency", "", "Scan frequency override (tier name or minutes)")
	createTargetCmd.Flags().IntVar(&newTargetTimeout, "timeout", 0, "Scan timeout override in seconds")
	createTargetCmd.Flags().IntVar(&newTargetMaxRetries, "max-retries", 0, "Retry budget override")
}
