package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/anoixa/pattern-vault/config"
	"github.com/anoixa/pattern-vault/internal/app"
	"github.com/spf13/cobra"
)

// checkCmd 检查群组成员关系和资源归属的一致性
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify group membership and resource scope invariants",
	Long: `Scan the database for broken group invariants:
  - a group whose admin is not a member
  - memberships pointing at missing users or groups
  - pages or albums scoped to a missing group
  - duplicate invite codes

Exits with status 1 when any violation is found.`,
	Run: func(cmd *cobra.Command, args []string) {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if err := runCheck(timeout); err != nil {
			log.Fatalf("Check failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Duration("timeout", time.Minute, "Maximum time for the scan")
}

func runCheck(timeout time.Duration) error {
	config.InitConfig()

	container := app.NewContainer(config.Get())
	if err := container.InitDatabase(); err != nil {
		return err
	}
	defer func() { _ = container.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	violations, err := container.GroupsRepo.CheckInvariants(ctx)
	if err != nil {
		return err
	}

	if len(violations) == 0 {
		fmt.Println("No invariant violations found.")
		return nil
	}

	fmt.Printf("Found %d invariant violations:\n", len(violations))
	for _, v := range violations {
		fmt.Printf("  - %s\n", v)
	}
	_ = container.Close()
	os.Exit(1)
	return nil
}
