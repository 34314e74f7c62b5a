package schemas

import (
	"strconv"
	"time"
)

// -- Diagnostics Schemas --

// Category tags a single kind of structural defect found in a document tree.
type Category string

// Constants defining the categories the scanner classifies elements into.
const (
	CategoryForeignScript     Category = "foreign_script"      // <script src> served from another host.
	CategoryLargeInlineScript Category = "large_inline_script" // Inline script body above the size limit.
	CategoryDeprecatedTag     Category = "deprecated_tag"      // marquee, blink, center, font, frame, frameset.
	CategoryEmptyDiv          Category = "empty_div"           // Leaf <div> with no text and no media.
	CategoryInlineStyles      Category = "inline_styles"       // Density of style="" attributes.
	CategoryManyClasses       Category = "many_classes"        // Elements carrying an excessive class list.
	CategoryHTMLComments      Category = "html_comments"       // Comment nodes left in the markup.
	CategoryLongDataAttr      Category = "long_data_attr"      // data-* attributes with oversized values.
	CategoryHiddenElements    Category = "hidden_elements"     // hidden attribute or inline hiding styles.
)

// Issue is one flagged anti-pattern instance or threshold-crossing aggregate.
// Issues are produced fresh on every scan and never persisted.
type Issue struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	// Count is the number of elements behind an aggregate issue (1 for individual ones).
	Count int `json:"count"`
	// Examples holds at most three illustrative sub-entries.
	Examples []string `json:"examples,omitempty"`
}

// Lines flattens the issue into the human-readable list form used by reports:
// the message followed by one indented line per example.
func (i Issue) Lines() []string {
	lines := make([]string, 0, 1+len(i.Examples))
	lines = append(lines, i.Message)
	for n, ex := range i.Examples {
		lines = append(lines, "  └─ example #"+strconv.Itoa(n+1)+": "+ex)
	}
	return lines
}

// ScanStatistics is the aggregate result of one scan. It is always fully populated;
// every counter is computed regardless of whether its category crossed a report threshold.
type ScanStatistics struct {
	TotalElements           int       `json:"totalElements"`
	Scripts                 int       `json:"scripts"`
	InlineStyles            int       `json:"inlineStyles"`
	Comments                int       `json:"comments"`
	EmptyDivs               int       `json:"emptyDivs"`
	DeprecatedTags          int       `json:"deprecatedTags"`
	ElementsWithManyClasses int       `json:"elementsWithManyClasses"`
	LongDataAttrs           int       `json:"longDataAttrs"`
	HiddenElements          int       `json:"hiddenElements"`
	Issues                  int       `json:"issues"`
	IssuesList              []string  `json:"issuesList"`
	Timestamp               time.Time `json:"timestamp"`
}

// -- Snapshot Schemas --

// SnapshotInfo is the read-only metadata of the single snapshot slot.
type SnapshotInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Size      int       `json:"size"` // Size of the serialized document in bytes.
}

// Snapshot is the persisted form of the slot: the serialized document plus metadata.
type Snapshot struct {
	SnapshotInfo
	HTML     string `json:"html"`
	Checksum uint64 `json:"checksum"`
}
