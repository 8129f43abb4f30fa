package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gregmatthewcrossley/jlc-has-it/internal/search"
)

var showCmd = &cobra.Command{
	Use:   "show <lcsc-id>",
	Short: "Show full details for one part (e.g. C12345)",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
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

	c, err := search.New(st, log).SearchOne(args[0])
	if err != nil {
		return err
	}
	if c == nil {
		fmt.Printf("%s not found\n", args[0])
		return nil
	}

	fmt.Printf("%s  %s\n", idStyle.Render(c.LCSC), c.Description)
	fmt.Printf("  Manufacturer: %s (%s)\n", c.Manufacturer, c.MPN)
	fmt.Printf("  Category:     %s / %s\n", c.Category, c.Subcategory)
	fmt.Printf("  Package:      %s, %d joints\n", c.Package, c.Joints)
	fmt.Printf("  Basic:        %v\n", c.Basic)
	fmt.Printf("  Stock:        %d\n", c.Stock)

	if len(c.PriceTiers) > 0 {
		fmt.Println("  Price tiers:")
		for _, t := range c.PriceTiers {
			fmt.Printf("    %6d+  $%.4f\n", t.MinimumQuantity, t.UnitPrice)
		}
	}

	if len(c.Attributes) > 0 {
		names := make([]string, 0, len(c.Attributes))
		for name := range c.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("  Attributes:")
		for _, name := range names {
			fmt.Printf("    %-24s %s\n", name, c.Attributes[name])
		}
	}
	return nil
}
