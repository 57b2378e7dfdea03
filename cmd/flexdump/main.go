// Command flexdump prints the contents of a dynamic value buffer, or the
// prefix and root vtable of a table buffer.
//
// Usage:
//
//	flexdump -file value.bin
//	flexdump -file monster.bin -core -size-prefixed -id MONS
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/arloliu/flatcodec"
	"github.com/arloliu/flatcodec/flat"
	"github.com/arloliu/flatcodec/flex"
	"github.com/arloliu/flatcodec/section"
)

type config struct {
	file         string
	core         bool
	sizePrefixed bool
	id           string
	verbose      bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.file, "file", "", "buffer file to dump (required)")
	flag.BoolVar(&cfg.core, "core", false, "treat the buffer as a table buffer")
	flag.BoolVar(&cfg.sizePrefixed, "size-prefixed", false, "table buffer starts with a size prefix")
	flag.StringVar(&cfg.id, "id", "", "expected 4-byte file identifier of a table buffer")
	flag.BoolVar(&cfg.verbose, "v", false, "enable debug logging")
	flag.Parse()

	logger, err := newLogger(cfg.verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	flatcodec.SetLogger(logger)

	if cfg.file == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg, os.Stdout); err != nil {
		logger.Error("dump failed", zap.String("file", cfg.file), zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func run(cfg config, w io.Writer) error {
	buf, err := os.ReadFile(cfg.file)
	if err != nil {
		return err
	}

	if cfg.core {
		return dumpTable(w, buf, cfg.sizePrefixed, cfg.id)
	}

	return dumpValue(w, buf)
}

func dumpValue(w io.Writer, buf []byte) error {
	root, err := flex.GetRoot(buf)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "size: %d bytes\nroot: %s/%s\n%s\n", len(buf), root.Type(), root.BitWidth(), root)

	return err
}

func dumpTable(w io.Writer, buf []byte, sizePrefixed bool, id string) error {
	prefix, err := section.ParsePrefix(buf, sizePrefixed, id != "")
	if err != nil {
		return err
	}
	if id != "" {
		if err := section.ValidateIdentifier(buf, id, sizePrefixed); err != nil {
			return err
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "size: %d bytes\n", len(buf))
	if prefix.SizePrefixed {
		fmt.Fprintf(&sb, "size prefix: %d\n", prefix.Size)
	}
	if prefix.HasIdentifier {
		fmt.Fprintf(&sb, "identifier: %q\n", prefix.Identifier[:])
	}
	fmt.Fprintf(&sb, "root table: %d\n", prefix.Root)

	var root flat.Table
	if sizePrefixed {
		root, err = flat.GetSizePrefixedRoot(buf)
	} else {
		root, err = flat.GetRoot(buf)
	}
	if err != nil {
		return err
	}

	slots, err := root.SlotCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(&sb, "root vtable: %d slots\n", slots)
	for slot := range slots {
		pos, present, err := root.FieldPos(slot)
		if err != nil {
			return err
		}
		if present {
			fmt.Fprintf(&sb, "  slot %d: offset %d\n", slot, pos-root.Pos)
		} else {
			fmt.Fprintf(&sb, "  slot %d: absent\n", slot)
		}
	}

	_, err = io.WriteString(w, sb.String())

	return err
}
