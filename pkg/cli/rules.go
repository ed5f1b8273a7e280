package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/commerce-it/mockserver/pkg/admin"
	"github.com/commerce-it/mockserver/pkg/cli/internal/output"
	"github.com/commerce-it/mockserver/pkg/cli/internal/parse"
	"github.com/commerce-it/mockserver/pkg/config"
	"github.com/commerce-it/mockserver/pkg/rule"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the rules of a running server",
}

// rulesAddFlags holds all flags for rules add.
type rulesAddFlags struct {
	file           string
	id             string
	name           string
	method         string
	path           string
	pathPattern    string
	headers        []string
	query          []string
	bodyContains   string
	bodyPattern    string
	bodyExpr       string
	bodySchema     string
	status         int
	responseBody   string
	responseHeader []string
	contentType    string
	template       bool
	delay          string
	times          int
}

var rulesAddFlagVals rulesAddFlags

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a rule from flags or from a rule file",
	Example: `  # Answer GET /products with a JSON list, expect exactly two calls
  mockserver rules add --method GET --path /products \
    --status 200 --content-type application/json --body '[]' --times 2

  # Add every rule in a file
  mockserver rules add --file rules/orders.yaml`,
	Args: cobra.NoArgs,
	RunE: runRulesAdd,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules with their call counts",
	Args:  cobra.NoArgs,
	RunE:  runRulesList,
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove all rules and clear the request journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := newAdminClient().Reset(cmd.Context()); err != nil {
			return err
		}
		return printResult(cmd, map[string]bool{"reset": true}, func() {
			fmt.Fprintln(cmd.OutOrStdout(), "All rules removed")
		})
	},
}

func init() {
	f := &rulesAddFlagVals
	fl := rulesAddCmd.Flags()

	fl.StringVarP(&f.file, "file", "f", "", "Rule file (YAML or JSON) to add")
	fl.StringVar(&f.id, "id", "", "Rule ID (default: generated)")
	fl.StringVar(&f.name, "name", "", "Rule name")
	fl.StringVarP(&f.method, "method", "m", "", "HTTP method to match")
	fl.StringVar(&f.path, "path", "", "Exact path to match, {param} segments allowed")
	fl.StringVar(&f.pathPattern, "path-pattern", "", "Regular expression the path must match")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, "Request header to match, Name: value (repeatable)")
	fl.StringArrayVarP(&f.query, "query", "q", nil, "Query parameter to match, name=value (repeatable)")
	fl.StringVar(&f.bodyContains, "body-contains", "", "Substring the request body must contain")
	fl.StringVar(&f.bodyPattern, "body-pattern", "", "Regular expression the request body must match")
	fl.StringVar(&f.bodyExpr, "body-expr", "", "Boolean expression over method, path, body, json, query and headers")
	fl.StringVar(&f.bodySchema, "body-schema", "", "JSON Schema file the request body must satisfy")
	fl.IntVarP(&f.status, "status", "s", 200, "Response status code")
	fl.StringVarP(&f.responseBody, "body", "b", "", "Response body")
	fl.StringArrayVar(&f.responseHeader, "response-header", nil, "Response header, Name: value (repeatable)")
	fl.StringVar(&f.contentType, "content-type", "", "Response Content-Type")
	fl.BoolVar(&f.template, "template", false, "Render the response body as a template")
	fl.StringVar(&f.delay, "delay", "", "Response delay, e.g. 250ms")
	fl.IntVar(&f.times, "times", 0, "Expect exactly this many calls (0 = no expectation)")

	rulesAddCmd.MarkFlagsMutuallyExclusive("file", "method")
	rulesAddCmd.MarkFlagsMutuallyExclusive("file", "path")

	rulesCmd.AddCommand(rulesAddCmd, rulesListCmd, rulesResetCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	f := &rulesAddFlagVals

	var defs []rule.Definition
	if f.file != "" {
		loaded, err := config.LoadRuleFile(f.file)
		if err != nil {
			return err
		}
		defs = loaded
	} else {
		def, err := f.definition()
		if err != nil {
			return err
		}
		defs = []rule.Definition{def}
	}

	client := newAdminClient()
	added := make([]*admin.RuleStatus, 0, len(defs))
	for _, def := range defs {
		st, err := client.AddRule(cmd.Context(), def)
		if err != nil {
			return fmt.Errorf("adding %s: %w", describeDefinition(def), err)
		}
		added = append(added, st)
	}

	return printResult(cmd, added, func() {
		for _, st := range added {
			fmt.Fprintf(cmd.OutOrStdout(), "Added rule %s (%s)\n", st.ID, describeDefinition(st.Definition))
		}
	})
}

// definition assembles a rule definition from flags. The admin API
// compiles and validates it.
func (f *rulesAddFlags) definition() (rule.Definition, error) {
	headers, err := parse.Headers(f.headers)
	if err != nil {
		return rule.Definition{}, err
	}
	query, err := parse.Query(f.query)
	if err != nil {
		return rule.Definition{}, err
	}
	respHeaders, err := parse.Headers(f.responseHeader)
	if err != nil {
		return rule.Definition{}, err
	}
	if f.contentType != "" {
		if respHeaders == nil {
			respHeaders = make(map[string]string)
		}
		respHeaders["Content-Type"] = f.contentType
	}

	def := rule.Definition{
		ID:   f.id,
		Name: f.name,
		Request: rule.RequestDefinition{
			Method:       f.method,
			Path:         f.path,
			PathPattern:  f.pathPattern,
			Headers:      headers,
			Query:        query,
			BodyContains: f.bodyContains,
			BodyPattern:  f.bodyPattern,
			BodyExpr:     f.bodyExpr,
		},
		Response: rule.ResponseDefinition{
			Status:   f.status,
			Headers:  respHeaders,
			Body:     f.responseBody,
			Template: f.template,
			Delay:    f.delay,
		},
	}
	if f.bodySchema != "" {
		data, err := os.ReadFile(f.bodySchema)
		if err != nil {
			return rule.Definition{}, fmt.Errorf("reading body schema: %w", err)
		}
		var schema any
		if err := json.Unmarshal(data, &schema); err != nil {
			return rule.Definition{}, fmt.Errorf("body schema %s: %w", f.bodySchema, err)
		}
		def.Request.BodySchema = schema
	}
	if f.times > 0 {
		e := rule.Times(f.times)
		def.Expect = &e
	}
	return def, nil
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	rules, err := newAdminClient().ListRules(cmd.Context())
	if err != nil {
		return err
	}

	return printResult(cmd, rules, func() {
		if len(rules) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No rules registered")
			return
		}
		tw := output.Table(cmd.OutOrStdout())
		fmt.Fprintln(tw, "ID\tNAME\tMATCH\tSTATUS\tCALLS\tEXPECTED")
		for _, st := range rules {
			expected := "-"
			if st.Definition.Expect != nil {
				expected = st.Definition.Expect.String()
			}
			status := st.Definition.Response.Status
			if status == 0 {
				status = 200
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
				st.ID, or(st.Name, "-"), describeDefinition(st.Definition), status, st.Calls, expected)
		}
		_ = tw.Flush()
	})
}

// describeDefinition renders the request side of def as "METHOD path".
func describeDefinition(def rule.Definition) string {
	path := def.Request.Path
	if path == "" && def.Request.PathPattern != "" {
		path = "~" + def.Request.PathPattern
	}
	return or(def.Request.Method, "*") + " " + or(path, "*")
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
