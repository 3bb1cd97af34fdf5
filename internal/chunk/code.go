package chunk

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// CodeChunker splits source code at top-level declaration boundaries,
// detected with line-anchored patterns per language. Declarations are merged
// into chunks up to the target size; a single oversized declaration is split
// with the fixed strategy. Unknown extensions fall back to semantic chunking.
type CodeChunker struct {
	semantic *SemanticChunker
	fixed    *FixedChunker
}

// NewCodeChunker creates a code-aware chunker.
func NewCodeChunker() *CodeChunker {
	return &CodeChunker{
		semantic: NewSemanticChunker(),
		fixed:    NewFixedChunker(),
	}
}

// Name returns the stable strategy name.
func (c *CodeChunker) Name() string { return "code" }

// SupportsParallel reports that code chunking can be parallelized.
func (c *CodeChunker) SupportsParallel() bool { return true }

// Chunk segments source code at declaration boundaries.
func (c *CodeChunker) Chunk(bufferID int64, text string, cfg Config) ([]Chunk, error) {
	spans, err := c.plan(text, cfg)
	if err != nil {
		return nil, err
	}
	return materialize(bufferID, text, spans, 0, c.Name()), nil
}

// plan computes the chunk boundaries without materializing content.
func (c *CodeChunker) plan(text string, cfg Config) ([]span, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	patterns := languagePatterns(languageForSource(cfg.Source))
	if patterns == nil {
		return c.semantic.plan(text, cfg)
	}

	starts := declStarts(text, patterns)
	if len(starts) == 0 {
		return c.semantic.plan(text, cfg)
	}

	// Candidate regions: the preamble before the first declaration, then
	// [decl_i, decl_{i+1}), then [decl_last, len).
	bounds := starts
	if bounds[0] != 0 {
		bounds = append([]int{0}, bounds...)
	}

	var spans []span
	emit := func(start, end int) error {
		if end-start <= cfg.ChunkSize {
			spans = append(spans, span{start: start, end: end})
			return nil
		}
		// Oversized single declaration: split with the fixed strategy,
		// keeping the configured overlap.
		sub, err := c.fixed.plan(text[start:end], cfg)
		if err != nil {
			return err
		}
		for _, sp := range sub {
			spans = append(spans, span{
				start:      start + sp.start,
				end:        start + sp.end,
				hasOverlap: sp.hasOverlap,
			})
		}
		return nil
	}

	curStart, curEnd := bounds[0], bounds[0]
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1]
		}
		switch {
		case curEnd == curStart:
			curStart, curEnd = b, end
		case end-curStart <= cfg.ChunkSize:
			curEnd = end
		default:
			if err := emit(curStart, curEnd); err != nil {
				return nil, err
			}
			curStart, curEnd = b, end
		}
	}
	if curEnd > curStart {
		if err := emit(curStart, curEnd); err != nil {
			return nil, err
		}
	}

	return capSpans(spans, cfg)
}

// declStarts returns the sorted, deduplicated line-start offsets of all
// declaration matches.
func declStarts(text string, patterns []*regexp.Regexp) []int {
	seen := make(map[int]struct{})
	for _, re := range patterns {
		for _, m := range re.FindAllStringIndex(text, -1) {
			lineStart := strings.LastIndexByte(text[:m[0]], '\n') + 1
			seen[lineStart] = struct{}{}
		}
	}
	starts := make([]int, 0, len(seen))
	for s := range seen {
		starts = append(starts, s)
	}
	sort.Ints(starts)
	return starts
}

// languageForSource maps a source path extension to a language tag.
func languageForSource(source string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(source), "."))
	switch ext {
	case "rs":
		return "rust"
	case "py":
		return "python"
	case "js", "jsx", "ts", "tsx":
		return "javascript"
	case "go":
		return "go"
	case "java":
		return "java"
	case "c", "cpp", "h", "hpp":
		return "c"
	case "rb":
		return "ruby"
	case "php":
		return "php"
	default:
		return ""
	}
}

// Declaration-start patterns per language, ordered by specificity.
var (
	rustPatterns = compileAll(
		`(?m)^[ \t]*(pub(\([^)]*\))?[ \t]+)?(async[ \t]+)?(unsafe[ \t]+)?fn[ \t]+\w+`,
		`(?m)^[ \t]*(unsafe[ \t]+)?impl(<[^>]*>)?[ \t]+`,
		`(?m)^[ \t]*(pub(\([^)]*\))?[ \t]+)?struct[ \t]+\w+`,
		`(?m)^[ \t]*(pub(\([^)]*\))?[ \t]+)?enum[ \t]+\w+`,
		`(?m)^[ \t]*(pub(\([^)]*\))?[ \t]+)?(unsafe[ \t]+)?trait[ \t]+\w+`,
		`(?m)^[ \t]*(pub(\([^)]*\))?[ \t]+)?mod[ \t]+\w+`,
	)
	pythonPatterns = compileAll(
		`(?m)^[ \t]*async[ \t]+def[ \t]+\w+`,
		`(?m)^[ \t]*def[ \t]+\w+`,
		`(?m)^[ \t]*class[ \t]+\w+`,
	)
	jsPatterns = compileAll(
		`(?m)^[ \t]*(export[ \t]+)?(async[ \t]+)?function[ \t]*\*?[ \t]*\w+`,
		`(?m)^[ \t]*(export[ \t]+)?(abstract[ \t]+)?class[ \t]+\w+`,
		`(?m)^[ \t]*(export[ \t]+)?(const|let|var)[ \t]+\w+[ \t]*=[ \t]*(async[ \t]+)?\([^)]*\)[ \t]*=>`,
	)
	goPatterns = compileAll(
		`(?m)^func[ \t]+(\([^)]+\)[ \t]*)?\w+`,
		`(?m)^type[ \t]+\w+[ \t]+(struct|interface)`,
	)
	javaPatterns = compileAll(
		`(?m)^[ \t]*(public|private|protected)?[ \t]*(abstract[ \t]+)?(final[ \t]+)?class[ \t]+\w+`,
		`(?m)^[ \t]*(public[ \t]+)?interface[ \t]+\w+`,
		`(?m)^[ \t]*(public|private|protected)[ \t]+(static[ \t]+)?(\w+[ \t]+)+\w+[ \t]*\([^)]*\)[ \t]*(\{|throws)`,
	)
	cPatterns = compileAll(
		`(?m)^[ \t]*(\w+[ \t]+)+\**[ \t]*\w+[ \t]*\([^)]*\)[ \t]*\{`,
		`(?m)^[ \t]*(template[ \t]*<[^>]*>[ \t]*)?(class|struct)[ \t]+\w+`,
		`(?m)^[ \t]*namespace[ \t]+\w+`,
	)
	rubyPatterns = compileAll(
		`(?m)^[ \t]*def[ \t]+\w+`,
		`(?m)^[ \t]*class[ \t]+\w+`,
		`(?m)^[ \t]*module[ \t]+\w+`,
	)
	phpPatterns = compileAll(
		`(?m)^[ \t]*(public[ \t]+|private[ \t]+|protected[ \t]+)?(static[ \t]+)?function[ \t]+\w+`,
		`(?m)^[ \t]*(abstract[ \t]+|final[ \t]+)?class[ \t]+\w+`,
	)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		res[i] = regexp.MustCompile(e)
	}
	return res
}

// languagePatterns returns the declaration patterns for a language tag, or
// nil when the language is unknown.
func languagePatterns(lang string) []*regexp.Regexp {
	switch lang {
	case "rust":
		return rustPatterns
	case "python":
		return pythonPatterns
	case "javascript":
		return jsPatterns
	case "go":
		return goPatterns
	case "java":
		return javaPatterns
	case "c":
		return cPatterns
	case "ruby":
		return rubyPatterns
	case "php":
		return phpPatterns
	default:
		return nil
	}
}
