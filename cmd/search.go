package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gregmatthewcrossley/jlc-has-it/internal/search"
)

var (
	flagCategory     string
	flagSubcategory  string
	flagManufacturer string
	flagPackage      string
	flagBasicOnly    bool
	flagInStock      bool
	flagMinStock     int
	flagMaxPrice     float64
	flagLimit        int
	flagOffset       int
	flagTotal        bool
	flagFullText     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [description]",
	Short: "Search the catalog by free text and filters",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&flagCategory, "category", "", "category name (e.g. \"Capacitors\")")
	searchCmd.Flags().StringVar(&flagSubcategory, "subcategory", "", "subcategory name")
	searchCmd.Flags().StringVar(&flagManufacturer, "manufacturer", "", "manufacturer substring")
	searchCmd.Flags().StringVar(&flagPackage, "package", "", "package, exact match (e.g. \"0603\")")
	searchCmd.Flags().BoolVar(&flagBasicOnly, "basic", false, "basic parts only")
	searchCmd.Flags().BoolVar(&flagInStock, "in-stock", true, "in-stock parts only")
	searchCmd.Flags().IntVar(&flagMinStock, "min-stock", 0, "minimum stock")
	searchCmd.Flags().Float64Var(&flagMaxPrice, "max-price", 0, "maximum first-tier unit price")
	searchCmd.Flags().IntVar(&flagLimit, "limit", search.DefaultLimit, "page size (clamped to 100)")
	searchCmd.Flags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	searchCmd.Flags().BoolVar(&flagTotal, "total", false, "compute the total match count")
	searchCmd.Flags().BoolVar(&flagFullText, "fulltext", false, "rank by full-text relevance instead of filtering (ignores other filters)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	log := newLogger()
	mgr, err := newManager(log)
	if err != nil {
		return err
	}
	st, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer st.Close()

	if flagFullText {
		if len(args) != 1 {
			return fmt.Errorf("--fulltext needs a query argument")
		}
		components, err := search.New(st, log).FullText(args[0], flagLimit)
		if err != nil {
			return err
		}
		fmt.Println(renderResults(&search.Result{Components: components, Limit: flagLimit}))
		return nil
	}

	params := search.Params{
		Category:     flagCategory,
		Subcategory:  flagSubcategory,
		Manufacturer: flagManufacturer,
		Package:      flagPackage,
		BasicOnly:    flagBasicOnly,
		InStockOnly:  flagInStock,
		MinStock:     flagMinStock,
		MaxPrice:     flagMaxPrice,
		Limit:        flagLimit,
		Offset:       flagOffset,
		IncludeTotal: flagTotal,
	}
	if len(args) == 1 {
		params.Description = args[0]
	}

	res, err := search.New(st, log).Search(params)
	if err != nil {
		return err
	}

	fmt.Println(renderResults(res))
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	basicStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func renderResults(res *search.Result) string {
	if len(res.Components) == 0 {
		return dimStyle.Render("no matching components")
	}

	var sb strings.Builder
	for _, c := range res.Components {
		tag := " "
		if c.Basic {
			tag = basicStyle.Render("B")
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s\n", idStyle.Render(c.LCSC), tag, c.Description))
		sb.WriteString(dimStyle.Render(fmt.Sprintf(
			"      %s | %s | %s | stock %d | $%.4f\n",
			c.Manufacturer, c.Category, c.Package, c.Stock, c.Price())))
	}

	footer := fmt.Sprintf("offset %d, %d results", res.Offset, len(res.Components))
	if res.TotalKnown {
		footer += fmt.Sprintf(" of %d", res.Total)
	}
	if res.HasMore {
		footer += " (more available)"
	}
	sb.WriteString(headerStyle.Render(footer))
	return sb.String()
}
