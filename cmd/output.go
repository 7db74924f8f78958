package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"marksweep/internal/clix"
	"marksweep/internal/models"
	"marksweep/internal/services"
)

var (
	okMark   = color.GreenString("✓")
	warnMark = color.YellowString("!")
	failMark = color.RedString("✗")
)

const titleWidth = 48

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}

// progressPrinter reports each finished bookmark on one line.
func progressPrinter(w io.Writer) services.ProgressFunc {
	return func(done, total int, b models.Bookmark) {
		mark := okMark
		if b.Error != "" {
			mark = failMark
		}
		fmt.Fprintf(w, "[%d/%d] %s %s\n", done, total, mark, clix.Truncate(b.Title, titleWidth))
	}
}

func printScanResult(w io.Writer, scan models.ScanResult) {
	fmt.Fprintf(w, "\nScanned %d bookmarks: %s accessible, %s broken\n",
		scan.Total,
		color.GreenString("%d", len(scan.Accessible)),
		color.RedString("%d", len(scan.Broken)))

	if len(scan.Categories) > 0 {
		groups := append([]models.CategoryGroup(nil), scan.Categories...)
		sort.SliceStable(groups, func(i, j int) bool { return len(groups[i].Bookmarks) > len(groups[j].Bookmarks) })
		fmt.Fprintln(w, "\nCategories:")
		for _, g := range groups {
			fmt.Fprintf(w, "  %-14s %d\n", g.Name, len(g.Bookmarks))
		}
	}

	if len(scan.Broken) > 0 {
		fmt.Fprintln(w, "\nBroken:")
		for _, b := range scan.Broken {
			fmt.Fprintf(w, "  %s %s\n    %s (%s)\n", failMark, clix.Truncate(b.Title, titleWidth), b.URL, b.Error)
		}
	}

	if len(scan.Errors) > 0 {
		fmt.Fprintf(w, "\n%s %d items hit processing errors; see `marksweep diagnostics`.\n", warnMark, len(scan.Errors))
	}
}

func printOrganization(w io.Writer, res models.OrganizationResult, summary string) {
	c := color.New(color.FgGreen)
	if !res.Success {
		c = color.New(color.FgRed)
	} else if res.PartialSuccess {
		c = color.New(color.FgYellow)
	}
	c.Fprintln(w, summary)
}

// confirm asks a yes/no question; assumeYes skips the prompt.
func confirm(title, description string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	ok := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}
