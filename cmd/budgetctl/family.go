package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"budgetboard/internal/report"
)

var flagMember string

var familyCmd = &cobra.Command{
	Use:   "family",
	Short: "Family expenses for a month, by member and category",
	Args:  cobra.NoArgs,
	RunE:  withApp(runFamily),
}

func init() {
	familyCmd.Flags().StringVar(&flagMember, "member", "", "Only this member")
	rootCmd.AddCommand(familyCmd)
}

func runFamily(ctx context.Context, a *app, _ []string) error {
	req, err := a.request(ctx)
	if err != nil {
		return err
	}
	req.Member = strings.TrimSpace(flagMember)

	page, err := a.dashboard.Family(ctx, req)
	if err != nil {
		return err
	}

	name := "Family"
	if page.Family != "" {
		name = page.Family + " family"
	}
	title := fmt.Sprintf("%s · %s", name, page.Period.Label)
	if page.Member != "" {
		title += " · " + page.Member
	}

	fmt.Fprintln(a.out)
	fmt.Fprint(a.out, report.Summary(title, page.Summary, a.opts()))
	if !page.Summary.IsEmpty() {
		fmt.Fprintln(a.out)
		fmt.Fprint(a.out, report.Owners(page.Summary, page.MemberCount, a.opts()))
	}
	return nil
}
