package frame

import (
	"testing"

	"github.com/sigurn/crc16"
	"github.com/sigurn/crc8"
	"github.com/stretchr/testify/assert"
)

func TestFrameType(t *testing.T) {
	f := New(IDTimeResponse|IDConnectionValid, 1, 2, 3, nil)
	assert.Equal(t, IDTimeResponse, f.Type())
	assert.True(t, f.ConnectionValid())
	assert.True(t, IsSpdo(IDDataOnly))
	assert.True(t, IsSpdo(IDTimeRequest|IDConnectionValid))
	assert.False(t, IsSpdo(0x05))
	f.TR = 0x3F | TRExtCtPresent
	assert.EqualValues(t, 63, f.Sequence())
	assert.True(t, f.ExtCtPresent())
	assert.False(t, f.ExtCtValid())
}

func TestEncodeDecode(t *testing.T) {
	t.Run("short payload uses crc8", func(t *testing.T) {
		f := New(IDDataOnly, 0x12, 0x05, 0, []byte{1, 2, 3})
		f.CT = 0xABCD
		data, err := Encode(f)
		assert.Nil(t, err)
		assert.Equal(t, Size(3), len(data))
		assert.Equal(t, sub1HeaderSize+3+1+sub2HeaderSize+3+1, len(data))
		decoded, err := Decode(data)
		assert.Nil(t, err)
		assert.Equal(t, f.Header, decoded.Header)
		assert.Equal(t, []byte{1, 2, 3}, decoded.Payload)
	})

	t.Run("long payload uses crc16", func(t *testing.T) {
		payload := make([]byte, 20)
		for i := range payload {
			payload[i] = byte(i * 3)
		}
		f := New(IDTimeRequest, 0x3FF, 0x10, 0x20, payload)
		f.TR = 42
		f.SetCT40(0xAB_CDEF_1234)
		data, err := Encode(f)
		assert.Nil(t, err)
		assert.Equal(t, sub1HeaderSize+20+2+sub2HeaderSize+20+2, len(data))
		decoded, err := Decode(data)
		assert.Nil(t, err)
		assert.EqualValues(t, 0xAB_CDEF_1234, decoded.CT40())
		assert.EqualValues(t, 42, decoded.Sequence())
		assert.True(t, decoded.ExtCtPresent())
		assert.Equal(t, uint16(0x20), decoded.Target)
		assert.Equal(t, uint16(0x3FF), decoded.Domain)
		assert.Equal(t, payload, decoded.Payload)
	})

	t.Run("empty payload", func(t *testing.T) {
		f := New(IDDataOnly, 1, 1, 0, []byte{})
		data, err := Encode(f)
		assert.Nil(t, err)
		decoded, err := Decode(data)
		assert.Nil(t, err)
		assert.Len(t, decoded.Payload, 0)
	})
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(nil)
	assert.Equal(t, ErrFrameShort, err)
	_, err = Encode(New(IDDataOnly, 1, 1, 0, make([]byte, MaxPayloadLength+1)))
	assert.Equal(t, ErrPayloadLength, err)
	f := New(IDDataOnly, 1, 1, 0, []byte{1})
	f.Length = 2
	_, err = Encode(f)
	assert.Equal(t, ErrFrameLength, err)
	_, err = Encode(New(IDDataOnly, 1, MaxAddress+1, 0, nil))
	assert.Equal(t, ErrAddress, err)
}

func TestDecodeStructuralFailures(t *testing.T) {
	f := New(IDDataOnly, 0x12, 0x05, 0, []byte{1, 2, 3, 4})
	valid, err := Encode(f)
	assert.Nil(t, err)
	sub1Size := sub1HeaderSize + 4 + 1

	corrupt := func(pos int) []byte {
		data := make([]byte, len(valid))
		copy(data, valid)
		data[pos] ^= 0x01
		return data
	}

	decoded, err := Decode(valid[:5])
	assert.Nil(t, decoded)
	assert.Equal(t, ErrFrameShort, err)

	decoded, err = Decode(valid[:len(valid)-1])
	assert.Nil(t, decoded)
	assert.Equal(t, ErrFrameLength, err)

	decoded, err = Decode(corrupt(sub1HeaderSize))
	assert.Nil(t, decoded)
	assert.Equal(t, ErrCrcSub1, err)

	decoded, err = Decode(corrupt(sub1Size + sub2HeaderSize))
	assert.Nil(t, decoded)
	assert.Equal(t, ErrCrcSub2, err)
}

func TestCrcCheckValues(t *testing.T) {
	check := []byte("123456789")
	assert.Equal(t, crc8Params.Check, crc8.Checksum(check, crc8Table))
	assert.Equal(t, crc16Params.Check, crc16.Checksum(check, crc16Table))
}
