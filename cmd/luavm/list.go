package main

import (
	"fmt"
	"io"
	"os"

	"github.com/uganh16/lua51vm/internal/bytecode"
	"github.com/uganh16/lua51vm/internal/loader"
	"github.com/uganh16/lua51vm/pkg/lua"
)

func listFile(w io.Writer, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	p, err := loader.Decode(data, "@"+file)
	if err != nil {
		return err
	}
	list(w, p)
	return nil
}

func list(w io.Writer, p *bytecode.Prototype) {
	printHeader(w, p)
	printCode(w, p)
	printDebug(w, p)
	for _, p := range p.Protos {
		list(w, p)
	}
}

func printHeader(w io.Writer, p *bytecode.Prototype) {
	funcType := "main"
	if p.LineDefined > 0 {
		funcType = "function"
	}

	source := p.Source
	if source == "" {
		source = "=?"
	}
	if source[0] == '@' || source[0] == '=' {
		source = source[1:]
	} else if source[0] == lua.SIGNATURE[0] {
		source = "(bstring)"
	} else {
		source = "(string)"
	}

	varargFlag := ""
	if p.IsVararg {
		varargFlag = "+"
	}

	fmt.Fprintf(w, "\n%s <%s:%d,%d> (%d instruction%s)\n", funcType, source, p.LineDefined, p.LastLineDefined, len(p.Code), s(len(p.Code)))
	fmt.Fprintf(w, "%d%s param%s, %d slot%s, %d upvalue%s, %d local%s, %d constant%s, %d function%s\n", p.ParamCount, varargFlag, s(p.ParamCount), p.MaxStackSize, s(p.MaxStackSize), p.UpvalueCount, s(p.UpvalueCount), len(p.LocVars), s(len(p.LocVars)), len(p.Constants), s(len(p.Constants)), len(p.Protos), s(len(p.Protos)))
}

func printCode(w io.Writer, p *bytecode.Prototype) {
	for pc := 0; pc < len(p.Code); pc++ {
		i := p.Code[pc]
		line := "-"
		if len(p.LineInfo) > pc {
			line = fmt.Sprintf("%d", p.LineInfo[pc])
		}
		fmt.Fprintf(w, "\t%d\t[%s]\t%-9s\t", pc+1, line, i.OpName())
		switch i.OpMode() {
		case bytecode.IABC:
			fmt.Fprintf(w, "%d", i.A)
			if i.BMode() != bytecode.OpArgN {
				fmt.Fprintf(w, " %d", rk(i.B))
			}
			if i.CMode() != bytecode.OpArgN {
				fmt.Fprintf(w, " %d", rk(i.C))
			}
		case bytecode.IABx:
			fmt.Fprintf(w, "%d", i.A)
			switch i.BMode() {
			case bytecode.OpArgK:
				fmt.Fprintf(w, " %d", -1-i.B)
				fmt.Fprintf(w, "\t; %s", constant(p.Constants[i.B]))
			case bytecode.OpArgU:
				fmt.Fprintf(w, " %d", i.B)
			}
		case bytecode.IAsBx:
			fmt.Fprintf(w, "%d %d", i.A, i.B)
			if i.Op == bytecode.OP_JMP || i.Op == bytecode.OP_FORLOOP || i.Op == bytecode.OP_FORPREP {
				fmt.Fprintf(w, "\t; to %d", pc+2+i.B)
			}
		}
		fmt.Fprintf(w, "\n")
		if i.Op == bytecode.OP_SETLIST && i.C == 0 && pc+1 < len(p.Code) {
			pc++
			fmt.Fprintf(w, "\t%d\t[-]\t%-9s\t%d\n", pc+1, "(count)", p.Code[pc].Encode())
		}
	}
}

func printDebug(w io.Writer, p *bytecode.Prototype) {
	fmt.Fprintf(w, "constants (%d):\n", len(p.Constants))
	for i, k := range p.Constants {
		fmt.Fprintf(w, "\t%d\t%s\n", i+1, constant(k))
	}

	fmt.Fprintf(w, "locals (%d):\n", len(p.LocVars))
	for i, locVar := range p.LocVars {
		fmt.Fprintf(w, "\t%d\t%s\t%d\t%d\n", i, locVar.VarName, locVar.StartPC+1, locVar.EndPC+1)
	}

	fmt.Fprintf(w, "upvalues (%d):\n", p.UpvalueCount)
	for i := 0; i < p.UpvalueCount; i++ {
		upvalueName := "-"
		if i < len(p.UpvalueNames) {
			upvalueName = p.UpvalueNames[i]
		}
		fmt.Fprintf(w, "\t%d\t%s\n", i, upvalueName)
	}
}

/* register operands print as is, constants as -1-index */
func rk(x int) int {
	if bytecode.IsK(x) {
		return -1 - bytecode.IndexK(x)
	}
	return x
}

func constant(k any) string {
	switch k := k.(type) {
	case nil:
		return "nil"
	case bool:
		return fmt.Sprintf("%t", k)
	case float64:
		return fmt.Sprintf("%.14g", k)
	case string:
		return fmt.Sprintf("%q", k)
	}
	return "?"
}

func s(n int) string {
	if n != 1 {
		return "s"
	}
	return ""
}
