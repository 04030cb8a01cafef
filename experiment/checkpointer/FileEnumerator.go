package checkpointer

import "fmt"

type fileEnumerator struct {
	i         int
	name      string
	extension string
}

func (f *fileEnumerator) filename() string {
	f.i++
	return fmt.Sprintf("%v%v%v", f.name, f.i, f.extension)
}

// FilenameEnumerator returns a function which returns filenames with a
// counter suffix, one higher on each call than on the previous call,
// starting at start+1. The extension should include its leading dot.
func FilenameEnumerator(start int, filename, extension string) func() string {
	enum := fileEnumerator{i: start, name: filename, extension: extension}
	return enum.filename
}
