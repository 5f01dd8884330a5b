package registry

import (
	"github.com/aretw0/weft/pkg/domain"
)

// Entry is a catalog item: display metadata plus the default config of a node type.
type Entry struct {
	Type          string         `json:"type" yaml:"type"`
	Label         string         `json:"label" yaml:"label"`
	Icon          string         `json:"icon" yaml:"icon"`
	Description   string         `json:"description" yaml:"description"`
	DefaultConfig map[string]any `json:"config" yaml:"config"`
}

// NodeData instantiates the entry as fresh node data.
func (e Entry) NodeData() domain.NodeData {
	return domain.NodeData{
		Label:       e.Label,
		Type:        e.Type,
		Icon:        e.Icon,
		Description: e.Description,
		Config:      domain.CloneConfig(e.DefaultConfig),
	}
}

// Category groups catalog entries for display (trigger, action, logic).
type Category struct {
	Key   string  `json:"key" yaml:"key"`
	Name  string  `json:"category" yaml:"category"`
	Items []Entry `json:"items" yaml:"items"`
}

// Catalog is a static, read-only list of node types grouped by category.
type Catalog struct {
	categories []Category
}

// NewCatalog creates a catalog from the given categories.
func NewCatalog(categories ...Category) *Catalog {
	return &Catalog{categories: categories}
}

// DefaultCatalog returns the built-in node types.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Category{
			Key:  "trigger",
			Name: "Triggers",
			Items: []Entry{
				{
					Type:        domain.TypeTelegramReceive,
					Label:       "Receive Telegram",
					Icon:        "messageCircle",
					Description: "Receive messages and files from Telegram bot",
					DefaultConfig: map[string]any{
						"checkInterval":   "10", // seconds
						"messageTypes":    "all",
						"maxFileSizeInMB": "50",
					},
				},
			},
		},
		Category{
			Key:  "action",
			Name: "Actions",
			Items: []Entry{
				{
					Type:          domain.TypeTelegramSend,
					Label:         "Send Telegram",
					Icon:          "messageCircle",
					Description:   "Send a Telegram message",
					DefaultConfig: map[string]any{"chatId": "", "message": ""},
				},
				{
					Type:        domain.TypeArweaveUpload,
					Label:       "Upload to Arweave",
					Icon:        "upload",
					Description: "Upload files to Arweave permanent storage",
					DefaultConfig: map[string]any{
						"tags":      "", // comma-separated
						"permanent": "true",
					},
				},
			},
		},
		Category{
			Key:  "logic",
			Name: "Logic",
			Items: []Entry{
				{
					Type:          domain.TypeDelay,
					Label:         "Delay",
					Icon:          "clock",
					Description:   "Add a delay",
					DefaultConfig: map[string]any{"delay": 5},
				},
			},
		},
	)
}

// Lookup returns node data for the given type as a fresh copy.
// It never fails loudly: ok is false for unknown types.
func (c *Catalog) Lookup(nodeType string) (domain.NodeData, bool) {
	for _, cat := range c.categories {
		for _, item := range cat.Items {
			if item.Type == nodeType {
				return item.NodeData(), true
			}
		}
	}
	return domain.NodeData{}, false
}

// Categories returns a copy of the catalog contents.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		items := make([]Entry, len(cat.Items))
		for j, item := range cat.Items {
			item.DefaultConfig = domain.CloneConfig(item.DefaultConfig)
			items[j] = item
		}
		cat.Items = items
		out[i] = cat
	}
	return out
}
