// Package render produces email bodies from notification content.
package render

import (
	"fmt"
	"html/template"
	"strings"
)

// RenderError 标记模板/数据类渲染失败。这类错误重试也会复现，
// 调度侧据此直接置终态，不走退避重试
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

var notificationTmpl = template.Must(template.New("notification").Parse(`<html>
<body>
<h3>{{.Title}}</h3>
<p>{{.Content}}</p>
<p style="color:#888;font-size:12px">AccessOps — automated account lifecycle notifications.</p>
</body>
</html>`))

var digestTmpl = template.Must(template.New("digest").Parse(`<html>
<body>
<h3>Your notification digest</h3>
<p>{{len .Items}} notification(s) since your last digest:</p>
<ul>
{{range .Items}}<li><b>{{.Title}}</b> — {{.Content}}</li>
{{end}}</ul>
<p style="color:#888;font-size:12px">AccessOps — automated account lifecycle notifications.</p>
</body>
</html>`))

type Item struct {
	Title   string
	Content string
}

// Notification 渲染单条通知邮件正文
func Notification(title, content string) (string, error) {
	var b strings.Builder
	err := notificationTmpl.Execute(&b, Item{Title: title, Content: content})
	if err != nil {
		return "", &RenderError{Err: err}
	}
	return b.String(), nil
}

// Digest 渲染摘要邮件正文
func Digest(items []Item) (string, error) {
	if len(items) == 0 {
		return "", &RenderError{Err: fmt.Errorf("digest has no items")}
	}
	var b strings.Builder
	err := digestTmpl.Execute(&b, struct{ Items []Item }{Items: items})
	if err != nil {
		return "", &RenderError{Err: err}
	}
	return b.String(), nil
}
