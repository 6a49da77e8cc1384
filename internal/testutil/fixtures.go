package testutil

// AddHack stores 5 + 3 in RAM[0] in six instructions.
const AddHack = `0000000000000101
1110110000010000
0000000000000011
1110000010010000
0000000000000000
1110001100001000
`

// AddTest loads AddHack, runs it for six cycles and records RAM[0].
// It takes eight steps.
const AddTest = `load Add.hack,
output-file Add.out,
compare-to Add.cmp,
output-list RAM[0]%D2.6.2;
repeat 6 {
  ticktock;
}
output;
`

// AddCmp is the expected output of AddTest.
const AddCmp = "|  RAM[0]  |\n|       8  |\n"

// AddProject returns the Add files laid out under dir ("" for the root).
func AddProject(dir string) map[string]string {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	return map[string]string{
		prefix + "Add.hack": AddHack,
		prefix + "Add.tst":  AddTest,
		prefix + "Add.cmp":  AddCmp,
	}
}
