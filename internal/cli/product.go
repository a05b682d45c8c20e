package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kardexapp/kardex/internal/doc"
	"github.com/kardexapp/kardex/internal/ledger"
)

// NewProductCommand groups the catalog commands.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage catalog products",
	}
	cmd.AddCommand(newProductAddCommand(rootOpts))
	cmd.AddCommand(newProductEditCommand(rootOpts))
	cmd.AddCommand(newProductListCommand(rootOpts))
	cmd.AddCommand(newProductDeleteCommand(rootOpts))
	cmd.AddCommand(newProductMergeCommand(rootOpts))
	cmd.AddCommand(newProductBulkEditCommand(rootOpts))
	cmd.AddCommand(newProductIgnoreCommand(rootOpts))
	return cmd
}

// productFlags are the writable product fields shared by add and edit.
type productFlags struct {
	Title       string
	Category    string
	Description string
	Notes       string
	SKU         string
	Price       float64
	Cost        float64
	Stock       int
}

func addProductFlags(cmd *cobra.Command, f *productFlags) {
	cmd.Flags().StringVar(&f.Title, "title", "", "product title")
	cmd.Flags().StringVar(&f.Category, "category", "", "product category")
	cmd.Flags().StringVar(&f.Description, "description", "", "product description")
	cmd.Flags().StringVar(&f.Notes, "notes", "", "internal notes")
	cmd.Flags().StringVar(&f.SKU, "sku", "", "variant SKU")
	cmd.Flags().Float64Var(&f.Price, "price", 0, "sale price")
	cmd.Flags().Float64Var(&f.Cost, "cost", 0, "unit cost")
	cmd.Flags().IntVar(&f.Stock, "stock", 0, "current stock")
}

func newProductAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &productFlags{}

	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add a product with a single variant",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			if strings.TrimSpace(flags.Title) == "" {
				out.Error("EMPTY_TITLE", "a product needs a title", nil)
				return NewExitError(ExitFailure, "a product needs a title")
			}

			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			v := doc.Variant{Name: "Único", SKU: flags.SKU, Stock: flags.Stock}
			if cmd.Flags().Changed("price") {
				v.Price = &flags.Price
			}
			if cmd.Flags().Changed("cost") {
				v.Cost = &flags.Cost
			}
			p := doc.Product{
				Category:    flags.Category,
				Title:       doc.NormalizeTitle(flags.Title),
				Description: flags.Description,
				Notes:       flags.Notes,
				Variants:    []doc.Variant{v},
			}

			if err := app.Engine.SaveProduct(cmd.Context(), p); err != nil {
				return reportEngineError(out, err)
			}

			saved := lastProductByTitle(app, p.Title)
			if rootOpts.Format == "json" {
				return out.Success(saved)
			}
			return out.Success(fmt.Sprintf("Added %q (id %s)", saved.Title, saved.ID))
		},
	}

	addProductFlags(cmd, flags)
	return cmd
}

func newProductEditCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &productFlags{}

	cmd := &cobra.Command{
		Use:           "edit <product-id>",
		Short:         "Edit a product; a changed stock becomes an adjustment movement",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			existing := app.Store.Snapshot().FindProduct(args[0])
			if existing == nil {
				return reportEngineError(out, &ledger.OpError{
					Code: ledger.ErrCodeProductNotFound, Message: "product not found", ProductID: args[0]})
			}
			p := existing.Clone()
			if cmd.Flags().Changed("title") {
				p.Title = doc.NormalizeTitle(flags.Title)
			}
			if cmd.Flags().Changed("category") {
				p.Category = flags.Category
			}
			if cmd.Flags().Changed("description") {
				p.Description = flags.Description
			}
			if cmd.Flags().Changed("notes") {
				p.Notes = flags.Notes
			}
			if len(p.Variants) > 0 {
				v := &p.Variants[0]
				if cmd.Flags().Changed("sku") {
					v.SKU = flags.SKU
				}
				if cmd.Flags().Changed("price") {
					v.Price = &flags.Price
				}
				if cmd.Flags().Changed("cost") {
					v.Cost = &flags.Cost
				}
				if cmd.Flags().Changed("stock") {
					v.Stock = flags.Stock
				}
			}

			if err := app.Engine.SaveProduct(cmd.Context(), p); err != nil {
				return reportEngineError(out, err)
			}
			if rootOpts.Format == "json" {
				return out.Success(app.Store.Snapshot().FindProduct(p.ID))
			}
			return out.Success(fmt.Sprintf("Updated %q", p.Title))
		},
	}

	addProductFlags(cmd, flags)
	return cmd
}

func newProductListCommand(rootOpts *RootOptions) *cobra.Command {
	var showIgnored bool

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List products and their variants",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			d := app.Store.Snapshot()
			ignored := make(map[string]bool, len(d.IgnoredProductIDs))
			for _, id := range d.IgnoredProductIDs {
				ignored[id] = true
			}

			var products []doc.Product
			for _, p := range d.Products {
				if showIgnored || !ignored[p.ID] {
					products = append(products, p)
				}
			}

			if rootOpts.Format == "json" {
				return out.Success(products)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d product(s)", len(products))
			for _, p := range products {
				fmt.Fprintf(&b, "\n%s  %s [%s]", p.ID, p.Title, p.Category)
				for _, v := range p.Variants {
					fmt.Fprintf(&b, "\n  %s  %s: %d en stock", v.ID, v.Name, v.Stock)
				}
			}
			return out.Success(b.String())
		},
	}

	cmd.Flags().BoolVar(&showIgnored, "all", false, "include ignored products")
	return cmd
}

func newProductDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:           "delete <product-id>",
		Short:         "Delete a product (its movement history is kept)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			if err := requireConfirm(out, confirm, "product delete"); err != nil {
				return err
			}
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.DeleteProduct(cmd.Context(), args[0]); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("Deleted product %s", args[0]))
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm the deletion")
	return cmd
}

func newProductMergeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "merge <primary-id> <secondary-id>",
		Short:         "Merge the secondary product's variants and ledgers into the primary",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			// The engine treats a missing id as a no-op, so both
			// targets are checked here before anything is written.
			d := app.Store.Snapshot()
			for _, id := range args {
				if d.FindProduct(id) == nil {
					return reportEngineError(out, &ledger.OpError{
						Code:      ledger.ErrCodeProductNotFound,
						Message:   "product not found",
						ProductID: id,
					})
				}
			}

			if err := app.Engine.MergeProducts(cmd.Context(), args[0], args[1]); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("Merged %s into %s", args[1], args[0]))
		},
	}
	return cmd
}

func newProductBulkEditCommand(rootOpts *RootOptions) *cobra.Command {
	var ids []string
	var category string
	var addTags []string

	cmd := &cobra.Command{
		Use:           "bulk-edit",
		Short:         "Apply one edit to many products in a single change",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			changes := ledger.BulkChanges{AddTags: addTags}
			if cmd.Flags().Changed("category") {
				changes.Category = &category
			}
			if err := app.Engine.BulkEdit(cmd.Context(), ids, changes); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("Bulk-edited %d product(s)", len(ids)))
		},
	}

	cmd.Flags().StringSliceVar(&ids, "ids", nil, "product ids to edit")
	cmd.Flags().StringVar(&category, "category", "", "category to set")
	cmd.Flags().StringSliceVar(&addTags, "add-tags", nil, "tags to union in")
	return cmd
}

func newProductIgnoreCommand(rootOpts *RootOptions) *cobra.Command {
	var ids []string

	cmd := &cobra.Command{
		Use:           "ignore",
		Short:         "Hide products from the default listing",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := formatter(cmd, rootOpts)
			app, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Engine.BulkIgnore(cmd.Context(), ids); err != nil {
				return reportEngineError(out, err)
			}
			return out.Success(fmt.Sprintf("Ignored %d product(s)", len(ids)))
		},
	}

	cmd.Flags().StringSliceVar(&ids, "ids", nil, "product ids to hide")
	return cmd
}

// lastProductByTitle finds the newest product carrying the title; ids
// are minted inside the engine so add has to look its result up.
func lastProductByTitle(app *App, title string) *doc.Product {
	d := app.Store.Snapshot()
	for i := len(d.Products) - 1; i >= 0; i-- {
		if d.Products[i].Title == title {
			return &d.Products[i]
		}
	}
	return nil
}
