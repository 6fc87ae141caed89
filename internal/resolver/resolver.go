// Package resolver はリクエストURIをドキュメントルート配下のパスに解決し、
// レスポンスのステータスを決定する。
//
// ステータスが 200 の場合、シンボリックリンクと .. を解決した後のパスが
// ドキュメントルートの子孫であることを最後に必ず確認する。
package resolver

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"webserver/internal/request"
)

// DefaultIndexFile はディレクトリのインデックスファイル名
const DefaultIndexFile = "index.html"

// Target は解決結果
type Target struct {
	Status  int              // 200, 301, 404, 405 のいずれか
	Path    string           // 200 は配信するファイル、301 はディレクトリ。それ以外は空
	Request *request.Request // 元のリクエスト

	// Escaped はドキュメントルート外を指したため 404 に変更されたことを示す。
	// クライアントへの応答は通常の 404 と区別しない。
	Escaped bool
}

// Resolver はドキュメントルートに対してリクエストを解決する
type Resolver struct {
	root      string
	indexFile string
}

// New は新しいResolverを作成する
func New(root, indexFile string) *Resolver {
	if indexFile == "" {
		indexFile = DefaultIndexFile
	}
	return &Resolver{
		root:      root,
		indexFile: indexFile,
	}
}

// Root はドキュメントルートを返す
func (r *Resolver) Root() string {
	return r.root
}

// Resolve はリクエストを解決する
func (r *Resolver) Resolve(req *request.Request) *Target {
	target := &Target{Request: req}

	// GET 以外は受け付けない
	if req.Method != http.MethodGet {
		target.Status = http.StatusMethodNotAllowed
		return target
	}

	// origin-form 以外のターゲットは配信しない
	if !strings.HasPrefix(req.URI, "/") {
		target.Status = http.StatusNotFound
		return target
	}

	candidate := filepath.Join(r.root, req.URI[1:])

	info, err := os.Stat(candidate)
	switch {
	case err != nil:
		target.Status = http.StatusNotFound
		return target

	case info.IsDir():
		if len(req.URI) > 1 && !strings.HasSuffix(req.URI, "/") {
			// 末尾にスラッシュを付けて再リクエストさせる
			target.Status = http.StatusMovedPermanently
			target.Path = candidate
		} else {
			target.Status = http.StatusOK
			target.Path = filepath.Join(candidate, r.indexFile)
		}

	default:
		target.Status = http.StatusOK
		target.Path = candidate
	}

	switch target.Status {
	case http.StatusOK:
		inside, err := r.contains(target.Path)
		if err != nil {
			// インデックスファイルがない場合など
			target.Status = http.StatusNotFound
			target.Path = ""
		} else if !inside {
			r.downgrade(target)
		}
	case http.StatusMovedPermanently:
		// ルート外のディレクトリへのリダイレクトも 404 にする
		if _, ok := r.Rel(target.Path); !ok {
			r.downgrade(target)
		}
	}

	return target
}

// Rel はドキュメントルートからの相対パスをスラッシュ区切りで返す
// ルートの外を指す場合は false を返す
func (r *Resolver) Rel(path string) (string, bool) {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || escapes(rel) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// downgrade はサンドボックス違反として 404 に変更する
func (r *Resolver) downgrade(target *Target) {
	target.Status = http.StatusNotFound
	target.Path = ""
	target.Escaped = true
}

// contains は path を正規化した結果がドキュメントルートの子孫かどうかを返す
// どちらかが解決できない場合はエラーを返す
func (r *Resolver) contains(path string) (bool, error) {
	root, err := canonical(r.root)
	if err != nil {
		return false, err
	}
	resolved, err := canonical(path)
	if err != nil {
		return false, err
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false, nil
	}
	return rel != "." && !escapes(rel), nil
}

// canonical はシンボリックリンクを解決した絶対パスを返す
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// escapes は相対パスが親ディレクトリを指すかどうかを返す
func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
