package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/sderkacs/xpvm/core"
	"github.com/sderkacs/xpvm/internal/collation"
	"github.com/sderkacs/xpvm/internal/printer"
	"github.com/sderkacs/xpvm/xmltree"
)

var inputGlob string

func init() {
	evalCmd.Flags().StringVar(&inputGlob, "input", "", "glob of XML documents to load into the document set (e.g. testdata/*.xml)")
}

var evalCmd = &cobra.Command{
	Use:   "eval <expression>",
	Short: "Compile and execute an XPath expression, printing the resulting sequence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := loadDocuments(inputGlob)
		if err != nil {
			return err
		}

		static := core.NewStaticContext()
		static.DefaultCollation = collationFlag(cmd)

		prog, err := core.Compile(args[0], static)
		if err != nil {
			return fmt.Errorf("static error: %w", err)
		}

		dctx := core.NewDynamicContext(static, docs)
		dctx.Logger = log
		collation.NewRegistry("en", "de", "fr", "sv").Install(dctx.Collations)
		if root, ok := firstDocumentElement(docs); ok {
			dctx.ContextItem = root
			dctx.ContextPosition = 1
			dctx.ContextSize = 1
		}

		vm := core.NewVM(prog, dctx, stepLimitFlag(cmd))
		seq, err := vm.Run()
		if err != nil {
			return fmt.Errorf("dynamic error: %w", err)
		}
		fmt.Println(printer.Sequence(seq))
		return nil
	},
}

// loadDocuments expands glob (a doublestar pattern, "" meaning "load
// nothing") and parses every matched file into a shared DocumentSet.
func loadDocuments(glob string) (*core.DocumentSet, error) {
	ds := core.NewDocumentSet()
	if glob == "" {
		return ds, nil
	}
	matches, err := doublestar.FilepathGlob(glob)
	if err != nil {
		return nil, fmt.Errorf("xpvm: input glob %q: %w", glob, err)
	}
	for _, path := range matches {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("xpvm: open %s: %w", path, err)
		}
		doc, err := xmltree.Parse(f, filepath.Clean(path))
		closeErr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("xpvm: parse %s: %w", path, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("xpvm: close %s: %w", path, closeErr)
		}
		ds.Add(doc)
	}
	return ds, nil
}

// firstDocumentElement picks the document element of the document
// set's first loaded document as the initial context item, the
// convention command-line XPath tools use when no explicit context is
// given.
func firstDocumentElement(ds *core.DocumentSet) (core.Node, bool) {
	for _, n := range ds.Documents {
		if doc, ok := n.(*xmltree.Document); ok {
			if el, ok := doc.DocumentElement(); ok {
				return el, true
			}
		}
	}
	return nil, false
}
