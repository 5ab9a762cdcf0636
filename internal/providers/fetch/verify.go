package fetch

import (
	"fmt"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/opencontainers/go-digest"
)

// verifyingReader wraps r so the bytes read are checked against want
func verifyingReader(r io.Reader, want string) (io.Reader, digest.Verifier, error) {
	if want == "" {
		return r, nil, nil
	}
	d, err := digest.Parse(want)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	v := d.Verifier()
	return io.TeeReader(r, v), v, nil
}

func verifyFileDigest(path, want string) error {
	if want == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, v, err := verifyingReader(f, want)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	if !v.Verified() {
		return fmt.Errorf("%w: %s does not match digest %s", ErrVerification, path, want)
	}
	return nil
}

// verifyArchive accepts zip and everything detected as a zip derivative
// (jar, apk, docx...)
func verifyArchive(path string) error {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return err
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return nil
		}
	}
	return fmt.Errorf("%w: %s is %s, not an archive", ErrVerification, path, mt.String())
}
