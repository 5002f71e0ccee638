// internal/importer/importer.go

// Package importer loads the federal municipality registry export into the
// municipalities collection. The export is a semicolon separated CSV with
// German column headers.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	columnBFSNumber  = "BFS-Nr"
	columnName       = "Gemeindename"
	columnCanton     = "Kantonskürzel"
	columnPostalCode = "PLZ"
)

// Record is one municipality row from the registry export.
type Record struct {
	BFSNumber  int
	Name       string
	Canton     string
	PostalCode string
}

// ImportResult summarizes an upsert run.
type ImportResult struct {
	Created int
	Updated int
}

// ParseRegistry reads the export and returns one record per BFS number. The
// export lists a municipality once per postal code; the first occurrence wins
// so each municipality keeps its primary postal code. Rows with a missing or
// non-numeric BFS number are skipped and counted.
func ParseRegistry(r io.Reader) ([]Record, int, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading header: %w", err)
	}
	if len(header) > 0 {
		// Excel exports prepend a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{columnBFSNumber, columnName, columnCanton, columnPostalCode} {
		if _, ok := index[required]; !ok {
			return nil, 0, fmt.Errorf("missing column %q in registry file", required)
		}
	}

	var records []Record
	seen := make(map[int]bool)
	skipped := 0

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		field := func(name string) string {
			i := index[name]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		bfsNumber, err := strconv.Atoi(field(columnBFSNumber))
		if err != nil || bfsNumber <= 0 {
			skipped++
			continue
		}
		if seen[bfsNumber] {
			continue
		}

		name := field(columnName)
		canton := field(columnCanton)
		if name == "" || canton == "" {
			skipped++
			continue
		}

		seen[bfsNumber] = true
		records = append(records, Record{
			BFSNumber:  bfsNumber,
			Name:       name,
			Canton:     canton,
			PostalCode: field(columnPostalCode),
		})
	}

	return records, skipped, nil
}

// Upsert writes the records keyed by BFS number. Existing municipalities keep
// their ObjectID so signatures referencing them stay valid.
func Upsert(ctx context.Context, collection *mongo.Collection, records []Record) (*ImportResult, error) {
	result := &ImportResult{}
	now := time.Now()

	for _, record := range records {
		res, err := collection.UpdateOne(ctx,
			bson.M{"bfs_number": record.BFSNumber},
			bson.M{
				"$set": bson.M{
					"name":        record.Name,
					"canton":      record.Canton,
					"postal_code": record.PostalCode,
					"updated_at":  now,
				},
				"$setOnInsert": bson.M{
					"bfs_number": record.BFSNumber,
					"created_at": now,
				},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return result, fmt.Errorf("upserting municipality %d: %w", record.BFSNumber, err)
		}

		if res.UpsertedCount > 0 {
			result.Created++
		} else {
			result.Updated++
		}
	}

	logrus.WithFields(logrus.Fields{
		"created": result.Created,
		"updated": result.Updated,
	}).Info("Municipality import finished")

	return result, nil
}
