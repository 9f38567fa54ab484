package field_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cluster/schema/field"
)

func TestString(t *testing.T) {
	t.Parallel()
	fd := field.String("name").
		NotEmpty().
		MaxLen(64).
		Comment("display name").
		Descriptor()

	assert.Equal(t, "name", fd.Name)
	assert.Equal(t, field.TypeString, fd.Type)
	assert.False(t, fd.Optional)
	assert.Equal(t, "display name", fd.Comment)
	require.Len(t, fd.Validators, 2)

	assert.Error(t, fd.Validators[0](""))
	assert.NoError(t, fd.Validators[0]("The Beatles"))
	assert.Error(t, fd.Validators[1](string(make([]byte, 65))))
}

func TestInt(t *testing.T) {
	t.Parallel()
	fd := field.Int("sort_order").NonNegative().Optional().Descriptor()
	assert.Equal(t, field.TypeInt, fd.Type)
	assert.True(t, fd.Optional)
	require.Len(t, fd.Validators, 1)
	assert.Error(t, fd.Validators[0](int64(-1)))
	assert.NoError(t, fd.Validators[0](int64(0)))

	t.Run("Range", func(t *testing.T) {
		fd := field.Int("rating").Range(1, 5).Descriptor()
		require.Len(t, fd.Validators, 1)
		assert.Error(t, fd.Validators[0](int64(0)))
		assert.NoError(t, fd.Validators[0](int64(3)))
		assert.Error(t, fd.Validators[0](int64(6)))
	})
}

func TestDefaults(t *testing.T) {
	t.Parallel()
	fd := field.String("status").Default("draft").Descriptor()
	assert.True(t, fd.HasDefault)
	assert.Equal(t, "draft", fd.Default)

	fd = field.Bool("active").Default(true).Descriptor()
	assert.True(t, fd.HasDefault)
	assert.Equal(t, true, fd.Default)
}

func TestStorageKey(t *testing.T) {
	t.Parallel()
	fd := field.String("name").StorageKey("title").Descriptor()
	assert.Equal(t, "title", fd.Column())

	fd = field.String("name").Descriptor()
	assert.Equal(t, "name", fd.Column(), "column defaults to the field name")
}

func TestCustomValidator(t *testing.T) {
	t.Parallel()
	banned := errors.New("reserved name")
	fd := field.String("name").
		Validate(func(v any) error {
			if v == "admin" {
				return banned
			}
			return nil
		}).
		Descriptor()
	require.Len(t, fd.Validators, 1)
	assert.ErrorIs(t, fd.Validators[0]("admin"), banned)
	assert.NoError(t, fd.Validators[0]("The Beatles"))
}

func TestTypeOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, field.TypeString, field.TypeOf("string"))
	assert.Equal(t, field.TypeInt, field.TypeOf("int"))
	assert.Equal(t, field.TypeFloat, field.TypeOf("float"))
	assert.Equal(t, field.TypeBool, field.TypeOf("bool"))
	assert.Equal(t, field.TypeTime, field.TypeOf("time"))
	assert.Equal(t, field.TypeUUID, field.TypeOf("uuid"))
	assert.False(t, field.TypeOf("varchar").Valid())
}
