package bgen

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/carbocation/genfile"
	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
)

// The schema written by bgenix, so that its tools can read our indexes.
const bgiSchema = `
CREATE TABLE Variant (
	chromosome TEXT NOT NULL,
	position INT NOT NULL,
	rsid TEXT NOT NULL,
	number_of_alleles INT NOT NULL,
	allele1 TEXT NOT NULL,
	allele2 TEXT NULL,
	file_start_position INT NOT NULL,
	size_in_bytes INT NOT NULL,
	PRIMARY KEY (chromosome, position, rsid, allele1, allele2, file_start_position)
) WITHOUT ROWID;
CREATE TABLE Metadata (
	filename TEXT NOT NULL,
	file_size INT NOT NULL,
	last_write_time INT NOT NULL,
	first_1000_bytes BLOB NOT NULL,
	index_creation_time INT NOT NULL
);
`

const insertVariant = `INSERT INTO Variant
	(chromosome, position, rsid, number_of_alleles, allele1, allele2, file_start_position, size_in_bytes)
	VALUES (:chromosome, :position, :rsid, :number_of_alleles, :allele1, :allele2, :file_start_position, :size_in_bytes)`

const insertMetadata = `INSERT INTO Metadata
	(filename, file_size, last_write_time, first_1000_bytes, index_creation_time)
	VALUES (:filename, :file_size, :last_write_time, :first_1000_bytes, :index_creation_time)`

type BGIIndex struct {
	DB       *sqlx.DB
	Metadata *BGIMetadata
}

func (b *BGIIndex) Close() error {
	return b.DB.Close()
}

// VariantIndex conforms to the data found in the rows of the SQLite table
// "Variant" from BGEN Index (.bgi) files, and can be easily parsed with sqlx.
type VariantIndex struct {
	Chromosome        string
	Position          uint32
	RSID              string `db:"rsid"`
	NAlleles          uint16 `db:"number_of_alleles"`
	Allele1           string
	Allele2           string
	FileStartPosition uint `db:"file_start_position"`
	SizeInBytes       uint `db:"size_in_bytes"`
}

// NewVariantIndex describes the block for id stored at [start, end).
func NewVariantIndex(id *genfile.VariantIdentifyingData, start, end int64) VariantIndex {
	v := VariantIndex{
		Chromosome:        id.Position().Chromosome.String(),
		Position:          id.Position().Position,
		RSID:              id.RSID().String(),
		NAlleles:          uint16(id.NumberOfAlleles()),
		FileStartPosition: uint(start),
		SizeInBytes:       uint(end - start),
	}
	if v.NAlleles > 0 {
		v.Allele1 = id.Allele(0).String()
	}
	if v.NAlleles > 1 {
		v.Allele2 = id.Allele(1).String()
	}
	return v
}

// BGIMetadata conforms to the data found in the rows of the SQLite table
// "Metadata" from more recent versions of BGEN.
type BGIMetadata struct {
	Filename           string
	FileSize           uint   `db:"file_size"`
	LastWriteTime      Time   `db:"last_write_time"`
	FirstThousandBytes []byte `db:"first_1000_bytes"`
	IndexCreationTime  Time   `db:"index_creation_time"`
}

func WhichSQLiteDriver() string {
	return whichSQLiteDriver
}

func connect(path string) (*sqlx.DB, error) {
	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html . It seems that sqlite3 permitted
	// URI filenames without the file: prefix, but that is not standard.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect(whichSQLiteDriver, path)
	if err != nil {
		return nil, err
	}
	if err := configureDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func OpenBGI(path string) (*BGIIndex, error) {
	bgi := &BGIIndex{
		Metadata: &BGIMetadata{},
	}

	db, err := connect(path)
	if err != nil {
		return nil, err
	}
	bgi.DB = db

	// Not all index files have metadata; ignore any error
	_ = bgi.DB.Get(bgi.Metadata, "SELECT * FROM Metadata LIMIT 1")

	return bgi, nil
}

// Variants returns every indexed variant in file order.
func (b *BGIIndex) Variants() ([]VariantIndex, error) {
	var out []VariantIndex
	if err := b.DB.Select(&out, "SELECT * FROM Variant ORDER BY file_start_position"); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

// LookupRSID returns the indexed variants with the given rsid.
func (b *BGIIndex) LookupRSID(rsid string) ([]VariantIndex, error) {
	var out []VariantIndex
	if err := b.DB.Select(&out, "SELECT * FROM Variant WHERE rsid = ? ORDER BY file_start_position", rsid); err != nil {
		return nil, pfx.Err(err)
	}
	return out, nil
}

// IndexWriter builds a .bgi file inside one transaction.
type IndexWriter struct {
	path string
	db   *sqlx.DB
	tx   *sqlx.Tx
	stmt *sqlx.NamedStmt
	n    int
}

// CreateIndex replaces any file at path with an empty index.
func CreateIndex(path string) (*IndexWriter, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, &genfile.ResourceError{Path: path, Err: err}
	}
	db, err := connect(path)
	if err != nil {
		return nil, &genfile.ResourceError{Path: path, Err: err}
	}
	w := &IndexWriter{path: path, db: db}
	if _, err := db.Exec(bgiSchema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}
	if w.tx, err = db.Beginx(); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}
	if w.stmt, err = w.tx.PrepareNamed(insertVariant); err != nil {
		w.Abort()
		return nil, pfx.Err(err)
	}
	return w, nil
}

func (w *IndexWriter) Add(v VariantIndex) error {
	if _, err := w.stmt.Exec(v); err != nil {
		return pfx.Err(err)
	}
	w.n++
	return nil
}

// Len counts the variants added so far.
func (w *IndexWriter) Len() int { return w.n }

// Finish records metadata describing the finished BGEN file at bgenPath and
// commits the index.
func (w *IndexWriter) Finish(bgenPath string) error {
	meta, err := describeFile(bgenPath)
	if err != nil {
		w.Abort()
		return err
	}
	if _, err := w.tx.NamedExec(insertMetadata, meta); err != nil {
		w.Abort()
		return pfx.Err(err)
	}
	w.stmt.Close()
	if err := w.tx.Commit(); err != nil {
		w.db.Close()
		return pfx.Err(err)
	}
	if err := w.db.Close(); err != nil {
		return pfx.Err(err)
	}
	return nil
}

// Abort discards the index.
func (w *IndexWriter) Abort() error {
	if w.stmt != nil {
		w.stmt.Close()
	}
	if w.tx != nil {
		w.tx.Rollback()
	}
	err := w.db.Close()
	os.Remove(w.path)
	return err
}

func describeFile(path string) (*BGIMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &genfile.ResourceError{Path: path, Err: err}
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, pfx.Err(err)
	}
	head := make([]byte, 1000)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, pfx.Err(err)
	}
	return &BGIMetadata{
		Filename:           info.Name(),
		FileSize:           uint(info.Size()),
		LastWriteTime:      Time(info.ModTime()),
		FirstThousandBytes: head[:n],
		IndexCreationTime:  Time(time.Now()),
	}, nil
}

// IndexFile scans the uncompressed local BGEN file at bgenPath and writes
// its index to indexPath. It returns the number of variants indexed.
func IndexFile(ctx context.Context, bgenPath, indexPath string, opts genfile.Options) (int, error) {
	opts.Compression = genfile.CompressionNone
	src, err := OpenSource(ctx, bgenPath, opts)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	if !src.in.Seekable() {
		return 0, &genfile.OperationUnsupportedError{Op: fmt.Sprintf("index %q, which is not a local file", bgenPath)}
	}

	w, err := CreateIndex(indexPath)
	if err != nil {
		return 0, err
	}
	for {
		start := src.f.offset
		id, err := src.ReadIdentifyingData()
		if err == genfile.ErrExhausted {
			break
		}
		if err != nil {
			w.Abort()
			return 0, err
		}
		if err := src.IgnoreProbabilityData(); err != nil {
			w.Abort()
			return 0, err
		}
		if err := w.Add(NewVariantIndex(id, start, src.f.offset)); err != nil {
			w.Abort()
			return 0, err
		}
	}
	n := w.Len()
	return n, w.Finish(bgenPath)
}
