package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tendersync/internal/model"
)

var mappingsTenant string

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage department mapping rules",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mapping rules for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rules, err := st.ListMappings(ctx, mappingsTenant)
		if err != nil {
			return eris.Wrap(err, "list mappings")
		}
		if len(rules) == 0 {
			fmt.Println("no mapping rules found")
			return nil
		}
		for _, m := range rules {
			approved := " "
			if m.Approved {
				approved = "*"
			}
			fmt.Printf("%s %s  %-9s  %-40q -> %s", approved, m.ID, m.MatchType, m.SourcePattern, m.Department)
			if m.Agency != "" {
				fmt.Printf(" / %s", m.Agency)
			}
			fmt.Printf("  (%.2f)\n", m.Confidence)
		}
		return nil
	},
}

var (
	addMatchType  string
	addAgency     string
	addConfidence float64
	addApproved   bool
)

var mappingsAddCmd = &cobra.Command{
	Use:   "add <source-pattern> <department>",
	Short: "Create a mapping rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mt := model.MatchType(addMatchType)
		if !mt.Valid() {
			return eris.Errorf("mappings: invalid match type %q", addMatchType)
		}
		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		now := time.Now().UTC()
		m := &model.DepartmentMapping{
			ID:            uuid.NewString(),
			TenantID:      mappingsTenant,
			SourcePattern: args[0],
			MatchType:     mt,
			Department:    args[1],
			Agency:        addAgency,
			Confidence:    addConfidence,
			Approved:      addApproved,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := st.CreateMapping(ctx, m); err != nil {
			return eris.Wrap(err, "create mapping")
		}
		fmt.Printf("created mapping %s\n", m.ID)
		return nil
	},
}

var mappingsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a mapping rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteMapping(ctx, mappingsTenant, args[0]); err != nil {
			return eris.Wrap(err, "delete mapping")
		}
		fmt.Printf("deleted mapping %s\n", args[0])
		return nil
	},
}

var mappingsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Bulk import mapping rules from CSV",
	Long: `Import mapping rules from a CSV file with columns:
source_pattern,match_type,department,agency,confidence,approved

Existing rules with the same (pattern, match type) are updated in place.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rules, err := readMappingCSV(args[0], mappingsTenant)
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			return eris.New("mappings: no rules in file")
		}

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.ImportMappings(ctx, rules)
		if err != nil {
			return eris.Wrap(err, "import mappings")
		}
		zap.L().Info("mappings imported", zap.Int64("count", n), zap.String("tenant", mappingsTenant))
		fmt.Printf("imported %d mapping rules\n", n)
		return nil
	},
}

var mappingsUnmappedCmd = &cobra.Command{
	Use:   "unmapped",
	Short: "List buyer entities with no matching rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		buyers, err := newResolver(st).Unmapped(ctx, mappingsTenant)
		if err != nil {
			return eris.Wrap(err, "list unmapped")
		}
		if len(buyers) == 0 {
			fmt.Println("all buyer entities are mapped")
			return nil
		}
		for _, b := range buyers {
			fmt.Println(b)
		}
		return nil
	},
}

// readMappingCSV parses a rule import file. The header row is required and
// column order is fixed; agency, confidence, and approved are optional.
func readMappingCSV(path, tenantID string) ([]model.DepartmentMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "mappings: open import file")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		return nil, eris.Wrap(err, "mappings: read header")
	}

	now := time.Now().UTC()
	var rules []model.DepartmentMapping
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "mappings: read line %d", line)
		}
		if len(row) < 3 {
			return nil, eris.Errorf("mappings: line %d: want at least 3 columns, got %d", line, len(row))
		}

		mt := model.MatchType(strings.ToLower(strings.TrimSpace(row[1])))
		if !mt.Valid() {
			return nil, eris.Errorf("mappings: line %d: invalid match type %q", line, row[1])
		}
		m := model.DepartmentMapping{
			ID:            uuid.NewString(),
			TenantID:      tenantID,
			SourcePattern: strings.TrimSpace(row[0]),
			MatchType:     mt,
			Department:    strings.TrimSpace(row[2]),
			Confidence:    1.0,
			Approved:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if len(row) > 3 {
			m.Agency = strings.TrimSpace(row[3])
		}
		if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
			c, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
			if err != nil || c < 0 || c > 1 {
				return nil, eris.Errorf("mappings: line %d: invalid confidence %q", line, row[4])
			}
			m.Confidence = c
		}
		if len(row) > 5 && strings.TrimSpace(row[5]) != "" {
			m.Approved = strings.EqualFold(strings.TrimSpace(row[5]), "true")
		}
		rules = append(rules, m)
	}
	return rules, nil
}

func init() {
	mappingsCmd.PersistentFlags().StringVar(&mappingsTenant, "tenant", "", "tenant ID")
	_ = mappingsCmd.MarkPersistentFlagRequired("tenant")

	mappingsAddCmd.Flags().StringVar(&addMatchType, "match", string(model.MatchExact), "match type (exact, contains, regex, fuzzy)")
	mappingsAddCmd.Flags().StringVar(&addAgency, "agency", "", "canonical agency")
	mappingsAddCmd.Flags().Float64Var(&addConfidence, "confidence", 1.0, "rule confidence (0..1)")
	mappingsAddCmd.Flags().BoolVar(&addApproved, "approved", true, "mark the rule approved")

	mappingsCmd.AddCommand(mappingsListCmd, mappingsAddCmd, mappingsDeleteCmd, mappingsImportCmd, mappingsUnmappedCmd)
	rootCmd.AddCommand(mappingsCmd)
}
