package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	contactsTenant string
	contactsLimit  int
	contactsOffset int
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List extracted contacts for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		contacts, err := st.ListContacts(ctx, contactsTenant, contactsLimit, contactsOffset)
		if err != nil {
			return eris.Wrap(err, "list contacts")
		}
		if len(contacts) == 0 {
			fmt.Println("no contacts found")
			return nil
		}
		for _, c := range contacts {
			fmt.Printf("%s  %-40s  seen in %d opportunities", c.ID, c.Email, c.OpportunityCount)
			if c.Name != "" {
				fmt.Printf("  (%s)", c.Name)
			}
			fmt.Println()
			for _, l := range c.Opportunities {
				fmt.Printf("    %s  %s  [%s]\n", l.OpportunityID, l.Title, l.SourceType)
			}
		}
		return nil
	},
}

func init() {
	contactsCmd.Flags().StringVar(&contactsTenant, "tenant", "", "tenant ID")
	contactsCmd.Flags().IntVar(&contactsLimit, "limit", 50, "maximum contacts to list")
	contactsCmd.Flags().IntVar(&contactsOffset, "offset", 0, "pagination offset")
	_ = contactsCmd.MarkFlagRequired("tenant")
	rootCmd.AddCommand(contactsCmd)
}
