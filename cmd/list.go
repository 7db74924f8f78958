package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"marksweep/internal/clix"
	"marksweep/internal/models"
)

var listFlat bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the bookmark tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		if listFlat {
			bookmarks, err := appInstance.Bookmarks(cmd.Context())
			if err != nil {
				return err
			}
			for _, b := range bookmarks {
				fmt.Printf("%-8s %-50s %s\n", b.ID, clix.Truncate(b.Title, titleWidth), b.URL)
			}
			fmt.Printf("\n%d bookmarks\n", len(bookmarks))
			return nil
		}

		forest, err := appInstance.Store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list bookmarks: %w", err)
		}
		for _, root := range forest {
			printTree(os.Stdout, root.Children, "")
		}
		return nil
	},
}

func printTree(w io.Writer, nodes []*models.Node, indent string) {
	for _, n := range nodes {
		if n.IsFolder() {
			fmt.Fprintf(w, "%s%s/ [%s]\n", indent, n.Title, n.ID)
			printTree(w, n.Children, indent+"  ")
			continue
		}
		fmt.Fprintf(w, "%s%s  %s\n", indent, clix.Truncate(n.Title, titleWidth), n.URL)
	}
}

var importParent string

var importCmd = &cobra.Command{
	Use:   "import <bookmarks.html>",
	Short: "Import a browser bookmark export (Netscape HTML)",
	Long: `Loads an HTML bookmark export as produced by Chrome, Firefox or Safari.
Folders are merged by title and links already present in the same folder are
skipped, so importing the same file twice adds nothing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		n, err := appInstance.ImportFile(cmd.Context(), args[0], importParent)
		if err != nil {
			return err
		}
		fmt.Printf("%s Imported %d bookmarks\n", okMark, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(importCmd)

	listCmd.Flags().BoolVar(&listFlat, "flat", false, "List bookmarks without folders")
	importCmd.Flags().StringVar(&importParent, "parent", "", "Folder ID to import into (default: Other Bookmarks)")
}
