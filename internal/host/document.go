// Package host models the design tool's object model: a document of
// selectable elements loaded from a file, the current selection, the
// viewport target, user notices and the plugin panel geometry.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/starford/designtrail/internal/apperr"
	"github.com/starford/designtrail/internal/models"
)

// Resize bounds of the plugin panel.
const (
	MinWidth  = 280
	MaxWidth  = 800
	MinHeight = 300
	MaxHeight = 600
)

const maxNotices = 50

// Node is one element in a document file. Children nest arbitrarily.
type Node struct {
	ID       string `yaml:"id" json:"id" toml:"id"`
	Name     string `yaml:"name" json:"name" toml:"name"`
	Children []Node `yaml:"children,omitempty" json:"children,omitempty" toml:"children,omitempty"`
}

// File is the on-disk document layout.
type File struct {
	Name      string   `yaml:"name" json:"name" toml:"name"`
	Elements  []Node   `yaml:"elements" json:"elements" toml:"elements"`
	Selection []string `yaml:"selection,omitempty" json:"selection,omitempty" toml:"selection,omitempty"`
}

// Document is the live host document. All methods are safe for concurrent use.
type Document struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	name      string
	nodes     map[string]models.Element
	order     []string
	selection []string
	viewport  string
	notices   []string
	panel     models.Size
	listeners []func()
}

// NewDocument builds an in-memory document from elements, with no backing file.
func NewDocument(logger *slog.Logger, elements ...models.Element) *Document {
	d := &Document{logger: orDefault(logger), panel: models.PortraitSize}
	nodes := make([]Node, len(elements))
	for i, el := range elements {
		nodes[i] = Node{ID: el.ID, Name: el.Name}
	}
	_ = d.apply(File{Elements: nodes})
	return d
}

// Load reads the document at path. The format follows the file extension.
func Load(path string, logger *slog.Logger) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("host: resolve path: %w", err)
	}
	d := &Document{path: abs, logger: orDefault(logger), panel: models.PortraitSize}
	f, err := readFile(abs)
	if err != nil {
		return nil, err
	}
	if err := d.apply(f); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.selection = d.knownIDs(f.Selection)
	d.mu.Unlock()
	return d, nil
}

// Path returns the backing file, or "" for in-memory documents.
func (d *Document) Path() string { return d.path }

// Reload re-reads the backing file. Selected ids that no longer exist are
// dropped from the selection. Selection listeners fire afterwards since
// names of selected elements may have changed.
func (d *Document) Reload() error {
	if d.path == "" {
		return nil
	}
	f, err := readFile(d.path)
	if err != nil {
		return err
	}
	if err := d.apply(f); err != nil {
		return err
	}
	d.mu.Lock()
	d.selection = d.knownIDs(d.selection)
	d.mu.Unlock()
	d.fireSelectionChanged()
	return nil
}

func (d *Document) apply(f File) error {
	nodes := make(map[string]models.Element)
	var order []string
	var walk func(ns []Node) error
	walk = func(ns []Node) error {
		for _, n := range ns {
			if n.ID == "" {
				return fmt.Errorf("host: element %q has no id: %w", n.Name, apperr.ErrInvalidInput)
			}
			if _, dup := nodes[n.ID]; dup {
				return fmt.Errorf("host: duplicate element id %q: %w", n.ID, apperr.ErrInvalidInput)
			}
			nodes[n.ID] = models.Element{ID: n.ID, Name: n.Name}
			order = append(order, n.ID)
			if err := walk(n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(f.Elements); err != nil {
		return err
	}

	d.mu.Lock()
	d.name = f.Name
	d.nodes = nodes
	d.order = order
	d.mu.Unlock()
	return nil
}

// knownIDs filters ids to those present in the document. Caller holds mu.
func (d *Document) knownIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := d.nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Name returns the document title.
func (d *Document) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.name
}

// NodeByID looks an element up anywhere in the tree.
func (d *Document) NodeByID(_ context.Context, id string) (models.Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.nodes[id]
	return el, ok
}

// Elements returns every element in document order.
func (d *Document) Elements() []models.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Element, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.nodes[id])
	}
	return out
}

// Selection returns the selected elements in selection order.
func (d *Document) Selection() []models.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Element, 0, len(d.selection))
	for _, id := range d.selection {
		if el, ok := d.nodes[id]; ok {
			out = append(out, el)
		}
	}
	return out
}

// Select replaces the selection. Unknown ids fail the whole call.
func (d *Document) Select(ids ...string) error {
	d.mu.Lock()
	for _, id := range ids {
		if _, ok := d.nodes[id]; !ok {
			d.mu.Unlock()
			return fmt.Errorf("host: select %q: %w", id, apperr.ErrElementNotResolvable)
		}
	}
	d.selection = append([]string(nil), ids...)
	d.mu.Unlock()

	d.fireSelectionChanged()
	return nil
}

// Navigate selects id and scrolls the viewport to it.
func (d *Document) Navigate(_ context.Context, id string) error {
	d.mu.Lock()
	if _, ok := d.nodes[id]; !ok {
		d.mu.Unlock()
		return fmt.Errorf("host: navigate %q: %w", id, apperr.ErrElementNotResolvable)
	}
	d.selection = []string{id}
	d.viewport = id
	d.mu.Unlock()

	d.logger.Debug("host: viewport moved", slog.String("element_id", id))
	d.fireSelectionChanged()
	return nil
}

// Viewport returns the id the viewport was last scrolled to.
func (d *Document) Viewport() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.viewport
}

// Notify shows a transient notice to the user.
func (d *Document) Notify(message string) {
	d.logger.Info("host: notify", slog.String("message", message))
	d.mu.Lock()
	d.notices = append(d.notices, message)
	if len(d.notices) > maxNotices {
		d.notices = d.notices[len(d.notices)-maxNotices:]
	}
	d.mu.Unlock()
}

// Notices returns the most recent notices, oldest first.
func (d *Document) Notices() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.notices...)
}

// Resize sets the panel geometry, clamped to the resize bounds.
func (d *Document) Resize(width, height int) models.Size {
	s := ClampSize(width, height)
	d.mu.Lock()
	d.panel = s
	d.mu.Unlock()
	return s
}

// PanelSize returns the current panel geometry.
func (d *Document) PanelSize() models.Size {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.panel
}

// OnSelectionChange registers fn to run after every selection change.
func (d *Document) OnSelectionChange(fn func()) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *Document) fireSelectionChanged() {
	d.mu.RLock()
	ls := append([]func(){}, d.listeners...)
	d.mu.RUnlock()
	for _, fn := range ls {
		fn()
	}
}

// ClampSize applies the resize bounds regardless of the requested size.
func ClampSize(width, height int) models.Size {
	return models.Size{
		Width:  clamp(width, MinWidth, MaxWidth),
		Height: clamp(height, MinHeight, MaxHeight),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func readFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("host: read document: %w", err)
	}
	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	default:
		return File{}, fmt.Errorf("host: unsupported document format %q: %w", ext, apperr.ErrInvalidInput)
	}
	if err != nil {
		return File{}, fmt.Errorf("host: parse document %s: %w", filepath.Base(path), err)
	}
	return f, nil
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
