package resolver

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"webserver/internal/request"
)

// setupRoot はテスト用のドキュメントルートを作成する
//
//	tmp/
//	  secret.html
//	  outside/index.html
//	  www/
//	    a.html
//	    style.css
//	    sub/index.html
//	    empty/
//	    alias.html -> a.html
//	    escape.html -> ../secret.html
//	    escapedir -> ../outside
func setupRoot(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	root := filepath.Join(tmp, "www")

	dirs := []string{
		root,
		filepath.Join(root, "sub"),
		filepath.Join(root, "empty"),
		filepath.Join(tmp, "outside"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("ディレクトリの作成に失敗しました: %v", err)
		}
	}

	files := map[string]string{
		filepath.Join(root, "a.html"):               "<p>hi</p>",
		filepath.Join(root, "style.css"):            "body {}",
		filepath.Join(root, "sub", "index.html"):    "ok",
		filepath.Join(tmp, "secret.html"):           "secret",
		filepath.Join(tmp, "outside", "index.html"): "outside",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("ファイルの作成に失敗しました: %v", err)
		}
	}

	links := map[string]string{
		filepath.Join(root, "alias.html"):  "a.html",
		filepath.Join(root, "escape.html"): filepath.Join("..", "secret.html"),
		filepath.Join(root, "escapedir"):   filepath.Join("..", "outside"),
	}
	for link, dest := range links {
		if err := os.Symlink(dest, link); err != nil {
			t.Skipf("シンボリックリンクを作成できません: %v", err)
		}
	}

	return root
}

func TestResolve(t *testing.T) {
	root := setupRoot(t)
	r := New(root, "index.html")

	testCases := []struct {
		name        string
		method      string
		uri         string
		wantStatus  int
		wantPath    string
		wantEscaped bool
	}{
		{"通常のファイル", "GET", "/a.html", http.StatusOK, filepath.Join(root, "a.html"), false},
		{"CSSファイル", "GET", "/style.css", http.StatusOK, filepath.Join(root, "style.css"), false},
		{"ルート内へのシンボリックリンク", "GET", "/alias.html", http.StatusOK, filepath.Join(root, "alias.html"), false},
		{"スラッシュなしのディレクトリ", "GET", "/sub", http.StatusMovedPermanently, filepath.Join(root, "sub"), false},
		{"スラッシュ付きのディレクトリ", "GET", "/sub/", http.StatusOK, filepath.Join(root, "sub", "index.html"), false},
		{"インデックスのないディレクトリ", "GET", "/empty/", http.StatusNotFound, "", false},
		{"ルートのインデックスがない", "GET", "/", http.StatusNotFound, "", false},
		{"存在しないファイル", "GET", "/missing.txt", http.StatusNotFound, "", false},
		{"先頭にスラッシュがない", "GET", "a.html", http.StatusNotFound, "", false},
		{"絶対形式のターゲット", "GET", "http://localhost/a.html", http.StatusNotFound, "", false},
		{"..でルートの親ディレクトリ", "GET", "/..", http.StatusNotFound, "", true},
		{"POSTは405", "POST", "/a.html", http.StatusMethodNotAllowed, "", false},
		{"存在しないパスへのPUTも405", "PUT", "/missing.txt", http.StatusMethodNotAllowed, "", false},
		{"HEADも405", "HEAD", "/a.html", http.StatusMethodNotAllowed, "", false},
		{"..でルートの外へ", "GET", "/../secret.html", http.StatusNotFound, "", true},
		{"途中の..でルートの外へ", "GET", "/sub/../../secret.html", http.StatusNotFound, "", true},
		{"ルート内に戻る..", "GET", "/sub/../a.html", http.StatusOK, filepath.Join(root, "a.html"), false},
		{"シンボリックリンクでルートの外へ", "GET", "/escape.html", http.StatusNotFound, "", true},
		{"外部ディレクトリへのリンク", "GET", "/escapedir/", http.StatusNotFound, "", true},
		{"外部ディレクトリへのリンク（スラッシュなし）", "GET", "/escapedir", http.StatusMovedPermanently, filepath.Join(root, "escapedir"), false},
		{"..でルートの外のディレクトリ", "GET", "/../outside", http.StatusNotFound, "", true},
		{"/etc/passwd", "GET", "/../../../../../../etc/passwd", http.StatusNotFound, "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := &request.Request{Method: tc.method, URI: tc.uri, Version: "1.1"}
			target := r.Resolve(req)

			if target.Status != tc.wantStatus {
				t.Errorf("ステータスが一致しません: got %d, want %d", target.Status, tc.wantStatus)
			}
			if target.Path != tc.wantPath {
				t.Errorf("パスが一致しません: got %q, want %q", target.Path, tc.wantPath)
			}
			if target.Request != req {
				t.Error("元のリクエストが保持されていません")
			}
			// /etc/passwd はテスト環境によって存在有無が変わるため Escaped は見ない
			if tc.uri != "/../../../../../../etc/passwd" && target.Escaped != tc.wantEscaped {
				t.Errorf("Escaped が一致しません: got %v, want %v", target.Escaped, tc.wantEscaped)
			}
		})
	}
}

// TestResolve_NeverServesOutsideRoot は 200 のパスが必ずルートの子孫であることを確認する
func TestResolve_NeverServesOutsideRoot(t *testing.T) {
	root := setupRoot(t)
	r := New(root, "")

	uris := []string{
		"/../secret.html",
		"/./../secret.html",
		"/sub/../../secret.html",
		"/../www/../secret.html",
		"/escape.html",
		"/escapedir/",
		"/escapedir/index.html",
		"/../outside/",
		"/../outside/index.html",
		"//../secret.html",
	}

	canonRoot, err := canonical(root)
	if err != nil {
		t.Fatal(err)
	}

	for _, uri := range uris {
		t.Run(uri, func(t *testing.T) {
			target := r.Resolve(&request.Request{Method: "GET", URI: uri, Version: "1.1"})
			if target.Status == http.StatusOK {
				resolved, _ := canonical(target.Path)
				t.Errorf("ルート外のパスが 200 になりました: %s (root %s)", resolved, canonRoot)
			}
			if target.Status != http.StatusNotFound {
				t.Errorf("404 が期待されました: got %d", target.Status)
			}
		})
	}
}

func TestResolve_RelativeRoot(t *testing.T) {
	root := setupRoot(t)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(filepath.Dir(root)); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	r := New("www", "index.html")

	target := r.Resolve(&request.Request{Method: "GET", URI: "/sub", Version: "1.1"})
	if target.Status != http.StatusMovedPermanently {
		t.Fatalf("301 が期待されました: got %d", target.Status)
	}
	rel, ok := r.Rel(target.Path)
	if !ok || rel != "sub" {
		t.Errorf("相対パスが一致しません: got %q (%v)", rel, ok)
	}

	target = r.Resolve(&request.Request{Method: "GET", URI: "/../secret.html", Version: "1.1"})
	if target.Status != http.StatusNotFound || !target.Escaped {
		t.Errorf("サンドボックス違反の 404 が期待されました: got %d (escaped=%v)", target.Status, target.Escaped)
	}
}

func TestRel(t *testing.T) {
	r := New("/srv/www", "")

	testCases := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{"/srv/www/sub", "sub", true},
		{"/srv/www/a/b", "a/b", true},
		{"/srv/www", ".", true},
		{"/srv/other", "", false},
		{"/srv/www/../..", "", false},
		{"/srv/www/..data", "..data", true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := r.Rel(tc.path)
			if got != tc.want || ok != tc.wantOK {
				t.Errorf("got (%q, %v), want (%q, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}
