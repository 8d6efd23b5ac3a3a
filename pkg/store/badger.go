package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ritzau/sbom-analyzer/pkg/logging"
)

// Key layout. Row values are JSON-encoded; index entries hold the
// target SBOM id as the value.
//
//	sbom/<sbom_id>                        -> Sbom
//	idx/doc/<document_id>                 -> sbom_id
//	idx/sha/<sha256>                      -> sbom_id
//	node/<sbom_id>/<node_id>              -> NodeRow
//	rel/<sbom_id>/<n>                     -> RelationshipRow
//	extref/<node_id>                      -> ExternalReference
//	cksum/node/<node_id>                  -> NodeChecksum
//	cksum/val/<value>/<sbom_id>/<node_id> -> NodeChecksum
//	pkg/node/<node_id>                    -> PackageRef
//	pkg/ver/<version>/<sbom_id>/<node_id> -> PackageRef
const (
	prefixSbom     = "sbom/"
	prefixDocIdx   = "idx/doc/"
	prefixShaIdx   = "idx/sha/"
	prefixNode     = "node/"
	prefixRel      = "rel/"
	prefixExtRef   = "extref/"
	prefixCksum    = "cksum/node/"
	prefixCksumVal = "cksum/val/"
	prefixPkgNode  = "pkg/node/"
	prefixPkgVer   = "pkg/ver/"
)

// Config holds the options for opening a Badger-backed store
type Config struct {
	// Path is the directory for the database files. Ignored when
	// InMemory is set.
	Path string

	// InMemory opens a non-persistent database, used by tests.
	InMemory bool

	// SyncWrites forces synchronous writes for durability.
	SyncWrites bool
}

// Badger is a Source implementation backed by an embedded BadgerDB
type Badger struct {
	db *badger.DB
}

// badgerLogger routes BadgerDB's internal logging through pkg/logging
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error(fmt.Sprintf(format, args...))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn(fmt.Sprintf(format, args...))
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug(fmt.Sprintf(format, args...))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Trace(fmt.Sprintf(format, args...))
}

// Open opens the row store. Callers must Close it when done.
func Open(cfg Config) (*Badger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store path is required for a persistent database")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Badger{db: db}, nil
}

// OpenInMemory opens a non-persistent store for testing
func OpenInMemory() (*Badger, error) {
	return Open(Config{InMemory: true})
}

// Close releases the underlying database
func (s *Badger) Close() error {
	return s.db.Close()
}

// InsertDocument stores all rows of one SBOM in a single transaction
func (s *Badger) InsertDocument(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return dataAccessError("insert document", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		sbomID := doc.Sbom.SbomID.String()

		if err := putJSON(txn, prefixSbom+sbomID, doc.Sbom); err != nil {
			return err
		}
		if doc.Sbom.DocumentID != "" {
			if err := txn.Set([]byte(prefixDocIdx+doc.Sbom.DocumentID), []byte(sbomID)); err != nil {
				return err
			}
		}
		if doc.Sbom.Sha256 != "" {
			if err := txn.Set([]byte(prefixShaIdx+doc.Sbom.Sha256), []byte(sbomID)); err != nil {
				return err
			}
		}

		for _, node := range doc.Nodes {
			if err := putJSON(txn, prefixNode+sbomID+"/"+node.NodeID, node); err != nil {
				return err
			}
			if node.Kind == NodeKindPackage {
				ref := PackageRef{SbomID: node.SbomID, NodeID: node.NodeID, Version: node.Version}
				if err := putJSON(txn, prefixPkgNode+node.NodeID, ref); err != nil {
					return err
				}
				if node.Version != "" {
					key := prefixPkgVer + node.Version + "/" + sbomID + "/" + node.NodeID
					if err := putJSON(txn, key, ref); err != nil {
						return err
					}
				}
			}
		}

		for i, rel := range doc.Relationships {
			if err := putJSON(txn, fmt.Sprintf("%s%s/%08d", prefixRel, sbomID, i), rel); err != nil {
				return err
			}
		}

		for _, ref := range doc.ExternalReferences {
			if err := putJSON(txn, prefixExtRef+ref.NodeID, ref); err != nil {
				return err
			}
		}

		for _, sum := range doc.Checksums {
			if err := putJSON(txn, prefixCksum+sum.NodeID, sum); err != nil {
				return err
			}
			key := prefixCksumVal + sum.Value + "/" + sbomID + "/" + sum.NodeID
			if err := putJSON(txn, key, sum); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return dataAccessError("insert document", err)
	}
	return nil
}

// FetchSboms lists all known SBOM documents
func (s *Badger) FetchSboms(ctx context.Context) ([]Sbom, error) {
	if err := ctx.Err(); err != nil {
		return nil, dataAccessError("fetch sboms", err)
	}

	var sboms []Sbom
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixSbom, func(val []byte) error {
			var sbom Sbom
			if err := json.Unmarshal(val, &sbom); err != nil {
				return err
			}
			sboms = append(sboms, sbom)
			return nil
		})
	})
	if err != nil {
		return nil, dataAccessError("fetch sboms", err)
	}
	return sboms, nil
}

// FetchGraphRows returns all node and relationship rows of one SBOM
func (s *Badger) FetchGraphRows(ctx context.Context, sbomID uuid.UUID) (*GraphRows, error) {
	if err := ctx.Err(); err != nil {
		return nil, dataAccessError("fetch graph rows", err)
	}

	rows := &GraphRows{}
	err := s.db.View(func(txn *badger.Txn) error {
		err := scanPrefix(txn, prefixNode+sbomID.String()+"/", func(val []byte) error {
			var node NodeRow
			if err := json.Unmarshal(val, &node); err != nil {
				return err
			}
			rows.Nodes = append(rows.Nodes, node)
			return nil
		})
		if err != nil {
			return err
		}
		return scanPrefix(txn, prefixRel+sbomID.String()+"/", func(val []byte) error {
			var rel RelationshipRow
			if err := json.Unmarshal(val, &rel); err != nil {
				return err
			}
			rows.Relationships = append(rows.Relationships, rel)
			return nil
		})
	})
	if err != nil {
		return nil, dataAccessError("fetch graph rows", err)
	}
	return rows, nil
}

// FetchExternalReference looks up the external reference record for a node id
func (s *Badger) FetchExternalReference(ctx context.Context, nodeID string) (*ExternalReference, error) {
	var ref ExternalReference
	found, err := s.getJSON(ctx, prefixExtRef+nodeID, &ref)
	if err != nil {
		return nil, dataAccessError("fetch external reference", err)
	}
	if !found {
		return nil, nil
	}
	return &ref, nil
}

// FindSbomBySourceSha256 resolves an SBOM by its source document checksum
func (s *Badger) FindSbomBySourceSha256(ctx context.Context, sha256 string) (*Sbom, error) {
	return s.findSbomByIndex(ctx, prefixShaIdx+sha256, "find sbom by checksum")
}

// FindSbomByDocumentID resolves an SBOM by its document identifier
func (s *Badger) FindSbomByDocumentID(ctx context.Context, documentID string) (*Sbom, error) {
	return s.findSbomByIndex(ctx, prefixDocIdx+documentID, "find sbom by document id")
}

func (s *Badger) findSbomByIndex(ctx context.Context, indexKey, op string) (*Sbom, error) {
	if err := ctx.Err(); err != nil {
		return nil, dataAccessError(op, err)
	}

	var sbom *Sbom
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(indexKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		sbomID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get([]byte(prefixSbom + string(sbomID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			sbom = &Sbom{}
			return json.Unmarshal(val, sbom)
		})
	})
	if err != nil {
		return nil, dataAccessError(op, err)
	}
	return sbom, nil
}

// FetchNodeChecksum looks up the checksum recorded for a node id
func (s *Badger) FetchNodeChecksum(ctx context.Context, nodeID string) (*NodeChecksum, error) {
	var sum NodeChecksum
	found, err := s.getJSON(ctx, prefixCksum+nodeID, &sum)
	if err != nil {
		return nil, dataAccessError("fetch node checksum", err)
	}
	if !found {
		return nil, nil
	}
	return &sum, nil
}

// FindNodeByChecksum finds a node in a different SBOM sharing the given
// checksum value. The first match in key order wins.
func (s *Badger) FindNodeByChecksum(ctx context.Context, value string, excludeSbom uuid.UUID) (*NodeChecksum, error) {
	if err := ctx.Err(); err != nil {
		return nil, dataAccessError("find node by checksum", err)
	}

	var match *NodeChecksum
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixCksumVal+value+"/", func(val []byte) error {
			if match != nil {
				return nil
			}
			var sum NodeChecksum
			if err := json.Unmarshal(val, &sum); err != nil {
				return err
			}
			if sum.SbomID != excludeSbom {
				match = &sum
			}
			return nil
		})
	})
	if err != nil {
		return nil, dataAccessError("find node by checksum", err)
	}
	return match, nil
}

// FetchPackageRef looks up a package node by node id
func (s *Badger) FetchPackageRef(ctx context.Context, nodeID string) (*PackageRef, error) {
	var ref PackageRef
	found, err := s.getJSON(ctx, prefixPkgNode+nodeID, &ref)
	if err != nil {
		return nil, dataAccessError("fetch package ref", err)
	}
	if !found {
		return nil, nil
	}
	return &ref, nil
}

// FindPackageByVersion finds a package node in a different SBOM with
// the same version string. The first match in key order wins.
func (s *Badger) FindPackageByVersion(ctx context.Context, version string, excludeSbom uuid.UUID) (*PackageRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, dataAccessError("find package by version", err)
	}

	var match *PackageRef
	err := s.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, prefixPkgVer+version+"/", func(val []byte) error {
			if match != nil {
				return nil
			}
			var ref PackageRef
			if err := json.Unmarshal(val, &ref); err != nil {
				return err
			}
			if ref.SbomID != excludeSbom {
				match = &ref
			}
			return nil
		})
	})
	if err != nil {
		return nil, dataAccessError("find package by version", err)
	}
	return match, nil
}

// getJSON reads a single JSON value; found is false on a missing key
func (s *Badger) getJSON(ctx context.Context, key string, v any) (found bool, err error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
	return found, err
}

func putJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), data)
}

func scanPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
		err := it.Item().Value(func(val []byte) error {
			return fn(val)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
