package intake

import (
	"encoding/json"
	"io"

	"github.com/japaniel/discoursehash/pkg/db"
	"github.com/japaniel/discoursehash/pkg/errors"
)

// GridItem is one sense position in a meaning grid file.
type GridItem struct {
	SynsetID int64   `json:"synset_id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Record converts the item to its store record.
func (g GridItem) Record() db.MeaningGridItem {
	return db.MeaningGridItem{SynsetID: g.SynsetID, X: g.X, Y: g.Y}
}

// DecodeGrid reads a meaning grid as {"items": [...]} or a bare array.
// Items without a positive synset id are rejected.
func DecodeGrid(r io.Reader) ([]GridItem, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read meaning grid")
	}

	var items []GridItem
	var wrapper struct {
		Items []GridItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Items) > 0 {
		items = wrapper.Items
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "parse meaning grid as object or array")
	}

	for i, item := range items {
		if item.SynsetID <= 0 {
			return nil, errors.Newf("meaning grid item %d has no synset id", i)
		}
	}
	return items, nil
}

// LoadGrid reads a meaning grid file, which may be gzip or tar.gz compressed.
func LoadGrid(path string) ([]GridItem, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	items, err := DecodeGrid(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return items, nil
}

// ImportGrid upserts items into the store.
func ImportGrid(conn db.DBExecutor, items []GridItem) (int, error) {
	for i, item := range items {
		if err := db.UpsertMeaningGridItem(conn, item.Record()); err != nil {
			return i, err
		}
	}
	return len(items), nil
}
