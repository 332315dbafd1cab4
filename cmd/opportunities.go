package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tendersync/internal/store"
)

var (
	oppsTenant  string
	oppsStatus  string
	oppsBuyer   string
	oppsLimit   int
	oppsOffset  int
	oppsResolve bool
)

var opportunitiesCmd = &cobra.Command{
	Use:   "opportunities",
	Short: "List ingested opportunities for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opps, err := st.ListOpportunities(ctx, store.OpportunityFilter{
			TenantID:    oppsTenant,
			Status:      oppsStatus,
			BuyerEntity: oppsBuyer,
			Limit:       oppsLimit,
			Offset:      oppsOffset,
		})
		if err != nil {
			return eris.Wrap(err, "list opportunities")
		}
		if len(opps) == 0 {
			fmt.Println("no opportunities found")
			return nil
		}

		resolver := newResolver(st)
		for _, o := range opps {
			fmt.Printf("%s  %-12s  %-8s  %s\n", o.ID, o.ExternalRef, o.Status, o.Title)
			if o.BuyerEntity == "" {
				continue
			}
			line := "    buyer: " + o.BuyerEntity
			if oppsResolve {
				res, err := resolver.Resolve(ctx, o.TenantID, o.BuyerEntity)
				if err != nil {
					return eris.Wrap(err, "resolve buyer")
				}
				if res != nil {
					line += fmt.Sprintf(" -> %s (%.2f)", res.Department, res.Confidence)
				} else {
					line += " -> unmapped"
				}
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	opportunitiesCmd.Flags().StringVar(&oppsTenant, "tenant", "", "tenant ID")
	opportunitiesCmd.Flags().StringVar(&oppsStatus, "status", "", "filter by status")
	opportunitiesCmd.Flags().StringVar(&oppsBuyer, "buyer", "", "filter by buyer entity")
	opportunitiesCmd.Flags().IntVar(&oppsLimit, "limit", 50, "maximum opportunities to list")
	opportunitiesCmd.Flags().IntVar(&oppsOffset, "offset", 0, "pagination offset")
	opportunitiesCmd.Flags().BoolVar(&oppsResolve, "resolve", false, "annotate buyers with resolved departments")
	_ = opportunitiesCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(opportunitiesCmd)
}
