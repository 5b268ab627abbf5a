package deltalake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const logDir = "_delta_log"

// errVersionExists signals that another writer committed the same version.
var errVersionExists = errors.New("deltalake: version already exists")

// snapshot is the table state after replaying the log up to Version.
type snapshot struct {
	Version  int64
	Meta     *metaData
	Columns  []Column
	Active   map[string]*addFile    // by decoded relative path
	Removed  map[string]*removeFile // tombstones, by decoded relative path
	Versions []int64
}

func versionFile(root string, v int64) string {
	return filepath.Join(root, logDir, fmt.Sprintf("%020d.json", v))
}

// listVersions returns the commit versions present in the log, ascending.
func listVersions(root string) ([]int64, error) {
	entries, err := os.ReadDir(filepath.Join(root, logDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(name, ".json"), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// loadSnapshot replays every commit. It returns (nil, nil) when the table has
// no log yet.
func loadSnapshot(root string) (*snapshot, error) {
	versions, err := listVersions(root)
	if err != nil {
		return nil, fmt.Errorf("deltalake: list log: %w", err)
	}
	if len(versions) == 0 {
		return nil, nil
	}
	if versions[0] != 0 {
		return nil, fmt.Errorf("deltalake: log starts at version %d; checkpoints are not supported", versions[0])
	}

	s := &snapshot{
		Version:  -1,
		Active:   map[string]*addFile{},
		Removed:  map[string]*removeFile{},
		Versions: versions,
	}
	for _, v := range versions {
		if v != s.Version+1 {
			return nil, fmt.Errorf("deltalake: log is missing version %d", s.Version+1)
		}
		if err := s.apply(versionFile(root, v)); err != nil {
			return nil, fmt.Errorf("deltalake: replay version %d: %w", v, err)
		}
		s.Version = v
	}
	if s.Meta == nil {
		return nil, fmt.Errorf("deltalake: log has no metaData action")
	}
	cols, err := decodeSchema(s.Meta.SchemaString)
	if err != nil {
		return nil, err
	}
	s.Columns = cols
	return s, nil
}

func (s *snapshot) apply(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var a action
		if err := json.Unmarshal(line, &a); err != nil {
			return err
		}
		switch {
		case a.MetaData != nil:
			s.Meta = a.MetaData
		case a.Add != nil:
			p, err := decodePath(a.Add.Path)
			if err != nil {
				return err
			}
			s.Active[p] = a.Add
			delete(s.Removed, p)
		case a.Remove != nil:
			p, err := decodePath(a.Remove.Path)
			if err != nil {
				return err
			}
			delete(s.Active, p)
			s.Removed[p] = a.Remove
		}
	}
	return sc.Err()
}

// sortedActive returns the active files ordered by path.
func (s *snapshot) sortedActive() []string {
	out := make([]string, 0, len(s.Active))
	for p := range s.Active {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// commit writes actions as version v. It fails with errVersionExists when
// the version file is already present.
func commit(root string, v int64, actions []action) error {
	if err := os.MkdirAll(filepath.Join(root, logDir), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range actions {
		if err := enc.Encode(a); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(versionFile(root, v), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errVersionExists
		}
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
