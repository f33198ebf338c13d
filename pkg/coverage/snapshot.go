package coverage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/golang/snappy"
)

// snapshotMagic identifies a coverage snapshot file.
// Layout: magic | uint32 crc of compressed payload | uint32 length | payload.
const snapshotMagic = uint32(0x434f5653) // "COVS"

type snapshotPayload struct {
	Scope        Scope   `json:"scope"`
	TotalNodes   int     `json:"total_nodes"`
	TotalLinks   int     `json:"total_links"`
	CoveredNodes []int64 `json:"covered_nodes"`
	CoveredLinks []int64 `json:"covered_links"`
}

// Snapshot writes the tracker state to path as a snappy-compressed,
// checksummed blob. Snapshots are a cache for fast restarts; the persisted
// path records remain the source of truth.
func (t *Tracker) Snapshot(path string) error {
	if !t.initialized {
		return fmt.Errorf("snapshot: tracker not initialized")
	}
	payload := snapshotPayload{
		Scope:      t.scope,
		TotalNodes: t.totalNodes,
		TotalLinks: t.totalLinks,
	}
	for id := range t.coveredNodes {
		payload.CoveredNodes = append(payload.CoveredNodes, id)
	}
	for id := range t.coveredLinks {
		payload.CoveredLinks = append(payload.CoveredLinks, id)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("snapshot: marshal: %w", err)
	}
	compressed := snappy.Encode(nil, raw)

	buf := make([]byte, 12+len(compressed))
	binary.LittleEndian.PutUint32(buf[0:4], snapshotMagic)
	binary.LittleEndian.PutUint32(buf[4:8], crc32.ChecksumIEEE(compressed))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(compressed)))
	copy(buf[12:], compressed)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0644); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

// RestoreSnapshot loads tracker state from a snapshot file. A corrupt or
// truncated file returns an error and leaves the tracker untouched.
func (t *Tracker) RestoreSnapshot(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if len(buf) < 12 {
		return fmt.Errorf("restore snapshot: file too short (%d bytes)", len(buf))
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != snapshotMagic {
		return fmt.Errorf("restore snapshot: bad magic")
	}
	wantCRC := binary.LittleEndian.Uint32(buf[4:8])
	length := binary.LittleEndian.Uint32(buf[8:12])
	if int(length) != len(buf)-12 {
		return fmt.Errorf("restore snapshot: length mismatch")
	}
	compressed := buf[12:]
	if crc32.ChecksumIEEE(compressed) != wantCRC {
		return fmt.Errorf("restore snapshot: checksum mismatch")
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("restore snapshot: decompress: %w", err)
	}
	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("restore snapshot: unmarshal: %w", err)
	}

	t.scope = payload.Scope
	t.totalNodes = payload.TotalNodes
	t.totalLinks = payload.TotalLinks
	t.coveredNodes = make(map[int64]bool, len(payload.CoveredNodes))
	t.coveredLinks = make(map[int64]bool, len(payload.CoveredLinks))
	for _, id := range payload.CoveredNodes {
		t.coveredNodes[id] = true
	}
	for _, id := range payload.CoveredLinks {
		t.coveredLinks[id] = true
	}
	t.initialized = true
	return nil
}
