package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/gregmatthewcrossley/jlc-has-it/internal/library"
	"github.com/gregmatthewcrossley/jlc-has-it/internal/search"
	"github.com/gregmatthewcrossley/jlc-has-it/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing catalog search tools",
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	log := newLogger()
	mgr, err := newManager(log)
	if err != nil {
		return err
	}
	st, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer st.Close()

	engine := search.New(st, log)
	dl, err := library.NewDownloader("", log)
	if err != nil {
		return err
	}

	s := mcpserver.NewMCPServer("jlc-has-it", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchComponentsTool(), makeSearchComponentsHandler(engine, dl))
	s.AddTool(componentDetailsTool(), makeComponentDetailsHandler(engine))
	s.AddTool(compareComponentsTool(), makeCompareComponentsHandler(engine))

	return mcpserver.ServeStdio(s)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchComponentsTool() mcp.Tool {
	return mcp.NewTool("search_components",
		mcp.WithDescription("Search the JLCPCB parts catalog by free text, category, manufacturer, stock, price, package, and engineering-unit attributes, with pagination."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query", mcp.Description("Free-text search in the description")),
		mcp.WithString("category", mcp.Description("Category name, e.g. 'Capacitors'")),
		mcp.WithString("subcategory", mcp.Description("Subcategory name")),
		mcp.WithString("manufacturer", mcp.Description("Manufacturer name substring")),
		mcp.WithString("package", mcp.Description("Package, exact match, e.g. '0603'")),
		mcp.WithBoolean("basic_only", mcp.Description("Only Basic parts. Default false; results sort Basic-first regardless")),
		mcp.WithBoolean("in_stock_only", mcp.Description("Only in-stock parts (default true)")),
		mcp.WithNumber("min_stock", mcp.Description("Minimum stock quantity")),
		mcp.WithNumber("max_price", mcp.Description("Maximum first-tier unit price")),
		mcp.WithString("attributes", mcp.Description(`Exact attribute matches as a JSON object, e.g. {"Type":"X7R"}`)),
		mcp.WithString("attribute_ranges", mcp.Description(`Attribute ranges as a JSON object of {"min","max"} value strings in any unit, e.g. {"Voltage Rated":{"min":"10V"}}`)),
		mcp.WithNumber("offset", mcp.Description("Pagination offset (default 0)")),
		mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
		mcp.WithBoolean("include_total", mcp.Description("Compute the exact total match count")),
		mcp.WithBoolean("validate_libraries", mcp.Description("Filter results to parts with complete KiCad libraries (slow: fetches each candidate)")),
		mcp.WithNumber("validation_candidates", mcp.Description("How many top results to validate (default 20)")),
	)
}

func componentDetailsTool() mcp.Tool {
	return mcp.NewTool("get_component_details",
		mcp.WithDescription("Get full details for one part: attributes, price tiers, stock."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("lcsc_id",
			mcp.Required(),
			mcp.Description("JLCPCB part number, e.g. 'C12345'"),
		),
	)
}

func compareComponentsTool() mcp.Tool {
	return mcp.NewTool("compare_components",
		mcp.WithDescription("Compare up to 10 parts side by side across their shared attributes."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("lcsc_ids",
			mcp.Required(),
			mcp.Description("Comma-separated part numbers, e.g. 'C1525,C307331'"),
		),
	)
}

// --- Handler factories ---

type searchResponse struct {
	Results    []componentSummary `json:"results"`
	Offset     int                `json:"offset"`
	Limit      int                `json:"limit"`
	HasMore    bool               `json:"has_more"`
	Total      *int               `json:"total,omitempty"`
	Validation *validationStatus  `json:"library_validation_status,omitempty"`
}

type componentSummary struct {
	LCSCID       string  `json:"lcsc_id"`
	Description  string  `json:"description"`
	Manufacturer string  `json:"manufacturer"`
	MPN          string  `json:"mfr_part_number"`
	Category     string  `json:"category"`
	Package      string  `json:"package"`
	Stock        int     `json:"stock"`
	Price        float64 `json:"price"`
	Basic        bool    `json:"basic"`
}

type validationStatus struct {
	Candidates int `json:"total_candidates"`
	Validated  int `json:"validated"`
	Failed     int `json:"failed"`
}

func summarize(c *store.Component) componentSummary {
	return componentSummary{
		LCSCID:       c.LCSC,
		Description:  c.Description,
		Manufacturer: c.Manufacturer,
		MPN:          c.MPN,
		Category:     c.Category,
		Package:      c.Package,
		Stock:        c.Stock,
		Price:        c.Price(),
		Basic:        c.Basic,
	}
}

func makeSearchComponentsHandler(engine *search.Engine, dl *library.Downloader) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := search.Params{
			Description:  req.GetString("query", ""),
			Category:     req.GetString("category", ""),
			Subcategory:  req.GetString("subcategory", ""),
			Manufacturer: req.GetString("manufacturer", ""),
			Package:      req.GetString("package", ""),
			BasicOnly:    req.GetBool("basic_only", false),
			InStockOnly:  req.GetBool("in_stock_only", true),
			MinStock:     req.GetInt("min_stock", 0),
			MaxPrice:     req.GetFloat("max_price", 0),
			Offset:       req.GetInt("offset", 0),
			Limit:        req.GetInt("limit", search.DefaultLimit),
			IncludeTotal: req.GetBool("include_total", false),
		}

		if raw := req.GetString("attributes", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &params.Attributes); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("attributes is not a JSON object: %v", err)), nil
			}
		}
		if raw := req.GetString("attribute_ranges", ""); raw != "" {
			var ranges map[string]struct {
				Min string `json:"min"`
				Max string `json:"max"`
			}
			if err := json.Unmarshal([]byte(raw), &ranges); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("attribute_ranges is not a JSON object: %v", err)), nil
			}
			params.Ranges = make(map[string]search.Range, len(ranges))
			for name, r := range ranges {
				params.Ranges[name] = search.Range{Min: r.Min, Max: r.Max}
			}
		}

		res, err := engine.Search(params)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		components := res.Components
		var status *validationStatus
		if req.GetBool("validate_libraries", false) && len(components) > 0 {
			n := min(len(components), req.GetInt("validation_candidates", 20))
			ids := make([]string, n)
			for i, c := range components[:n] {
				ids[i] = c.LCSC
			}
			valid := dl.Validated(ctx, ids)
			status = &validationStatus{
				Candidates: n,
				Validated:  len(valid),
				Failed:     n - len(valid),
			}
			kept := components[:0:0]
			for _, c := range components {
				if _, ok := valid[c.LCSC]; ok {
					kept = append(kept, c)
				}
			}
			components = kept
		}

		resp := searchResponse{
			Results:    make([]componentSummary, 0, len(components)),
			Offset:     res.Offset,
			Limit:      res.Limit,
			HasMore:    res.HasMore,
			Validation: status,
		}
		if res.TotalKnown {
			resp.Total = &res.Total
		}
		for _, c := range components {
			resp.Results = append(resp.Results, summarize(c))
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode response: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func makeComponentDetailsHandler(engine *search.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := req.GetString("lcsc_id", "")
		if id == "" {
			return mcp.NewToolResultError("lcsc_id is required"), nil
		}

		c, err := engine.SearchOne(id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		if c == nil {
			return mcp.NewToolResultText(fmt.Sprintf("No component found for %s", id)), nil
		}

		attrs := make(map[string]string, len(c.Attributes))
		for name, v := range c.Attributes {
			attrs[name] = v.String()
		}
		out, err := json.MarshalIndent(struct {
			componentSummary
			Subcategory string            `json:"subcategory"`
			Joints      int               `json:"joints"`
			PriceTiers  []store.PriceTier `json:"price_tiers"`
			Attributes  map[string]string `json:"attributes"`
		}{summarize(c), c.Subcategory, c.Joints, c.PriceTiers, attrs}, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode response: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

func makeCompareComponentsHandler(engine *search.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw := req.GetString("lcsc_ids", "")
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return mcp.NewToolResultError("lcsc_ids is required"), nil
		}
		if len(ids) > 10 {
			return mcp.NewToolResultError("can only compare up to 10 components at a time"), nil
		}

		var found []*store.Component
		var notFound []string
		for _, id := range ids {
			c, err := engine.SearchOne(id)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("lookup %s failed: %v", id, err)), nil
			}
			if c == nil {
				notFound = append(notFound, id)
				continue
			}
			found = append(found, c)
		}
		if len(found) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("no components found for: %s", strings.Join(ids, ", "))), nil
		}

		return mcp.NewToolResultText(formatComparison(found, notFound)), nil
	}
}

// --- Formatting helpers ---

func formatComparison(components []*store.Component, notFound []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Comparing %d components\n\n", len(components))
	if len(notFound) > 0 {
		fmt.Fprintf(&sb, "Not found: %s\n\n", strings.Join(notFound, ", "))
	}

	for _, c := range components {
		fmt.Fprintf(&sb, "### %s: %s\n", c.LCSC, c.Description)
		fmt.Fprintf(&sb, "%s | %s / %s | stock %d | $%.4f | basic=%v\n\n",
			c.Manufacturer, c.Category, c.Subcategory, c.Stock, c.Price(), c.Basic)
	}

	// Attribute matrix over the union of attribute names.
	names := map[string]bool{}
	for _, c := range components {
		for name := range c.Attributes {
			names[name] = true
		}
	}
	if len(names) > 0 {
		sb.WriteString("### Attributes\n\n")
		for _, name := range sortedNames(names) {
			fmt.Fprintf(&sb, "- **%s**: ", name)
			cells := make([]string, 0, len(components))
			for _, c := range components {
				if v, ok := c.Attribute(name); ok {
					cells = append(cells, fmt.Sprintf("%s=%s", c.LCSC, v))
				} else {
					cells = append(cells, fmt.Sprintf("%s=(none)", c.LCSC))
				}
			}
			sb.WriteString(strings.Join(cells, ", "))
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
