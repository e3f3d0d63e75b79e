package request

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// 前序请求引用的两种历史编码：内部 GUID 或 EXT-BATCH- 前缀的遗留批次号
type RefKind int8

const (
	RefNone RefKind = iota
	RefInternal
	RefLegacyBatch
)

type PreviousRef struct {
	Kind       RefKind
	InternalId string
	BatchId    string
}

const legacyBatchPrefix = "EXT-BATCH-"

var (
	guidPattern        = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	legacyBatchPattern = regexp.MustCompile(legacyBatchPrefix + `[A-Za-z0-9][A-Za-z0-9_-]*`)
)

// ParsePreviousRef 从自由文本备注中提取前序请求引用。
// 找不到可识别的引用时返回 RefNone，由调用方决定是否忽略
func ParsePreviousRef(comments string) PreviousRef {
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return PreviousRef{Kind: RefNone}
	}

	if m := guidPattern.FindString(comments); m != "" {
		if id, err := uuid.Parse(m); err == nil {
			return PreviousRef{Kind: RefInternal, InternalId: id.String()}
		}
	}

	if m := legacyBatchPattern.FindString(comments); m != "" {
		return PreviousRef{
			Kind:    RefLegacyBatch,
			BatchId: strings.TrimPrefix(m, legacyBatchPrefix),
		}
	}

	return PreviousRef{Kind: RefNone}
}
