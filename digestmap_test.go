package ocflstore_test

import (
	"testing"

	"github.com/matryer/is"
	ocfl "github.com/srerickson/ocflstore"
)

func TestDigestMap(t *testing.T) {
	is := is.New(t)
	m := ocfl.DigestMap{}
	m.Add("abc", "v2/content/file.txt")
	m.Add("abc", "v1/content/file.txt")
	m.Add("abc", "v1/content/file.txt") // duplicate, ignored
	m.Add("def", "v1/content/other.txt")
	is.Equal(len(m.Paths("abc")), 2)
	is.Equal(m.NumPaths(), 3)
	is.True(m.HasDigest("abc"))
	is.True(!m.HasDigest("xyz"))
	is.Equal(m.Digests(), []string{"abc", "def"})

	m.Normalize()
	is.Equal(m.Paths("abc")[0], "v1/content/file.txt")

	var visited []string
	is.NoErr(m.EachPath(func(digest, name string) error {
		visited = append(visited, name)
		return nil
	}))
	is.Equal(visited, []string{"v1/content/file.txt", "v2/content/file.txt", "v1/content/other.txt"})

	c := m.Copy()
	is.True(m.Eq(c))
	c.Add("abc", "v3/content/file.txt")
	is.True(!m.Eq(c))
}
