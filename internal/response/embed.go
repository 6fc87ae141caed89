package response

import (
	_ "embed"
	"fmt"
	"net/http"
)

// errorPage はエラーレスポンスのHTML雛形
// 1つ目にステータスコード、2つ目に "コード 理由" が入る
//
//go:embed error.html
var errorPage string

// errorBody はステータスコードに対応するエラーページを返す
func errorBody(status int) []byte {
	return []byte(fmt.Sprintf(errorPage, status, statusLabel(status)))
}

// statusLabel は "404 Not Found" 形式の文字列を返す
func statusLabel(status int) string {
	return fmt.Sprintf("%d %s", status, http.StatusText(status))
}
