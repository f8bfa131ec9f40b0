package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	assert.Equal(t, "tech solutions gmbh", Name("Tech Solutions GmbH"))
	assert.Equal(t, "tech solutions gmbh", Name("  Tech-Solutions   GmbH!  "))
	assert.Equal(t, "müller co", Name("Müller & Co."))
	assert.Equal(t, "", Name(""))
	assert.Equal(t, "", Name("---"))
}

func TestNamePrefix(t *testing.T) {
	assert.Equal(t, "tech", NamePrefix("Tech Solutions GmbH", 4))
	assert.Equal(t, "ab", NamePrefix("A.B.", 4))
	assert.Equal(t, "", NamePrefix("", 4))
}

func TestTokenSort(t *testing.T) {
	// Token order must not matter
	assert.Equal(t, TokenSort("Solutions Tech GmbH"), TokenSort("Tech Solutions GmbH"))
	assert.Equal(t, "gmbh solutions tech", TokenSort("Tech Solutions GmbH"))
}

func TestCity(t *testing.T) {
	assert.Equal(t, "berlin", City("Berlin"))
	assert.Equal(t, "frankfurt am main", City("  Frankfurt   am  Main "))
}

func TestPhone(t *testing.T) {
	// All country-code spellings of the same number fold together
	assert.Equal(t, "49711123456", Phone("+49 711 123456", "49"))
	assert.Equal(t, "49711123456", Phone("0049711123456", "49"))
	assert.Equal(t, "49711123456", Phone("0711 123456", "49"))
	assert.Equal(t, "49711123456", Phone("+49-711-123456", "49"))

	assert.Equal(t, "493012345678", Phone("+49 30 12345678", "49"))
	assert.Equal(t, "493012345678", Phone("030/12345678", "49"))

	assert.Equal(t, "", Phone("", "49"))
	assert.Equal(t, "", Phone("n/a", "49"))
}

func TestWebsite(t *testing.T) {
	assert.Equal(t, "example.com", Website("https://www.example.com/"))
	assert.Equal(t, "example.com", Website("http://example.com"))
	assert.Equal(t, "example.com", Website("EXAMPLE.COM"))
	assert.Equal(t, "example.com/shop", Website("https://example.com/shop/"))
	assert.Equal(t, "", Website(""))
}
