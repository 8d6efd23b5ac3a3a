package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/ritzau/sbom-analyzer/pkg/store"
)

// sbom-import loads SBOM document bundles (JSON) into the row store so
// the analysis server can query them.
func main() {
	flags := pflag.NewFlagSet("sbom-import", pflag.ExitOnError)
	storePath := flags.String("store", "./sbom-analyzer.db", "Path to the SBOM store")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	files := flags.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: sbom-import [--store PATH] FILE...")
		os.Exit(2)
	}

	st, err := store.Open(store.Config{Path: *storePath, SyncWrites: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: opening store %s: %v\n", *storePath, err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	for _, path := range files {
		doc, err := readDocument(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			os.Exit(1)
		}
		if err := st.InsertDocument(ctx, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("imported %s (%s): %d nodes, %d relationships, %d external refs\n",
			doc.Sbom.DocumentID, doc.Sbom.SbomID,
			len(doc.Nodes), len(doc.Relationships), len(doc.ExternalReferences))
	}
}

func readDocument(path string) (*store.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc store.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	if doc.Sbom.SbomID == uuid.Nil {
		doc.Sbom.SbomID = uuid.New()
	}
	stampSbomID(&doc)

	return &doc, nil
}

// stampSbomID fills in the document's SBOM id on rows that omit it, so
// fixtures only need to state the id once.
func stampSbomID(doc *store.Document) {
	id := doc.Sbom.SbomID
	for i := range doc.Nodes {
		if doc.Nodes[i].SbomID == uuid.Nil {
			doc.Nodes[i].SbomID = id
		}
	}
	for i := range doc.Relationships {
		if doc.Relationships[i].SbomID == uuid.Nil {
			doc.Relationships[i].SbomID = id
		}
	}
	for i := range doc.ExternalReferences {
		if doc.ExternalReferences[i].SbomID == uuid.Nil {
			doc.ExternalReferences[i].SbomID = id
		}
	}
	for i := range doc.Checksums {
		if doc.Checksums[i].SbomID == uuid.Nil {
			doc.Checksums[i].SbomID = id
		}
	}
}
