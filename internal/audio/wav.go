package audio

import (
	"encoding/binary"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WritePCM16WAV encodes mono PCM16LE samples as a WAV file via go-audio/wav,
// matching the bit depth and sample rate of the streamed audio exactly.
func WritePCM16WAV(w io.Writer, pcm []byte, sampleRate int) error {
	n := len(pcm) / 2
	data := make([]int, n)
	for i := 0; i < n; i++ {
		data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
	}

	enc := wav.NewEncoder(w, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
