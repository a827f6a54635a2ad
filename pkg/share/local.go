package share

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DirDownloader saves files into a directory, never overwriting existing ones
type DirDownloader struct {
	Dir string
}

// Save implements Downloader
func (d DirDownloader) Save(ctx context.Context, f File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := filepath.Base(f.Name)
	if name == "." || name == string(filepath.Separator) {
		name = "share.jpg"
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := file.Write(f.Data); err != nil {
			file.Close()
			os.Remove(path)
			return "", err
		}
		if err := file.Close(); err != nil {
			return "", err
		}
		return path, nil
	}
}

// SystemOpener opens URLs with the desktop's default handler
type SystemOpener struct{}

// OpenURL implements URLOpener
func (SystemOpener) OpenURL(ctx context.Context, u *url.URL) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", u.String())
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", u.String())
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", u.String())
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("opening %s: %w: %s", u.Scheme+"://", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// SystemClipboard writes text with the platform clipboard tool
type SystemClipboard struct{}

// WriteText implements Clipboard
func (SystemClipboard) WriteText(ctx context.Context, text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "pbcopy")
	case "windows":
		cmd = exec.CommandContext(ctx, "clip")
	default:
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			cmd = exec.CommandContext(ctx, "wl-copy")
		} else {
			cmd = exec.CommandContext(ctx, "xclip", "-selection", "clipboard")
		}
	}
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("copying to clipboard: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Local returns the capabilities of a desktop session: no native share
// sheet, the system URL handler and clipboard, and downloads into dir.
func Local(dir string) Capabilities {
	return Capabilities{
		Opener:     SystemOpener{},
		Downloader: DirDownloader{Dir: dir},
		Clipboard:  SystemClipboard{},
	}
}
