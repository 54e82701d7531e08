// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a catalog entry.
type Id int

const (
	ScriptNotFoundId Id = iota + 1
	ModuleNotFoundId
	UnknownAliasId
	UnknownBuiltinId
	InvalidReferenceId
	CyclicRequireId
	ModuleFailedId
	BundleIOId
	NotStandaloneId
	CorruptMetadataId
	IncompatibleRuntimeId
	OutputOverwritesInputId
	ConfigLoadFailedId
	AliasConfigInvalidId
	AliasConflictId
)

type (
	// MarkdownMsg is the long-form guidance rendered with glamour.
	MarkdownMsg string

	// HttpLink points at external documentation.
	HttpLink string

	// Issue is one catalog entry.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render returns the entry as styled terminal text. stylePath is a glamour
// style name ("dark", "light", "notty") or a path to a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	scriptNotFoundIssue = &Issue{
		id: ScriptNotFoundId,
		mdMsg: `
# Script not found!

The file passed on the command line does not exist.

## Things you can try:
- Check the path for typos
- Pass a directory to run its ` + "`init.sh`" + `:
~~~
$ crescent run ./tools
~~~`,
	}

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# Required module not found!

A ` + "`require`" + ` call named a module that does not exist. Every candidate
path that was tried is listed above.

## How references are resolved:
1. The path exactly as written
2. The path with each known extension appended (` + "`.sh`, `.bash`" + `)
3. When the path is a directory, its ` + "`init`" + ` file with each extension

## Things you can try:
- Check the reference for typos
- Remember that relative references start with ` + "`./`" + ` or ` + "`../`" + `
- Print the dependency graph of the entry script:
~~~
$ crescent deps ./main.sh
~~~`,
	}

	unknownAliasIssue = &Issue{
		id: UnknownAliasId,
		mdMsg: `
# Unknown alias!

An ` + "`@name/...`" + ` reference used an alias that no ` + "`.crescentrc`" + ` file
defines, searching from the requiring script's directory up to the root.

## Things you can try:
- Define the alias in a ` + "`.crescentrc`" + ` next to your scripts:
~~~json
{ "aliases": { "lib": "./lib" } }
~~~

- Use ` + "`@self/...`" + ` to refer to the requiring script's own directory`,
	}

	unknownBuiltinIssue = &Issue{
		id: UnknownBuiltinId,
		mdMsg: `
# Unknown built-in module!

The ` + "`@crescent/`" + ` namespace is reserved for modules shipped with the runtime.

## Things you can try:
- List the built-in modules:
~~~
$ crescent deps --builtins
~~~`,
	}

	invalidReferenceIssue = &Issue{
		id: InvalidReferenceId,
		mdMsg: `
# Invalid require reference!

Module references must take one of these forms:

| Form | Example |
|------|---------|
| relative | ` + "`./util`, `../shared/log`" + ` |
| absolute | ` + "`/opt/lib/net`" + ` |
| alias | ` + "`@lib/strings`, `@self/helpers`" + ` |

A bare name such as ` + "`util`" + ` is not a valid reference.`,
	}

	cyclicRequireIssue = &Issue{
		id: CyclicRequireId,
		mdMsg: `
# Cyclic require!

Two or more scripts require each other while still loading, so none of them
can finish. The cycle is printed above.

## Things you can try:
- Move the shared code into a third module both can require
- Require the module lazily inside a function instead of at the top level`,
	}

	moduleFailedIssue = &Issue{
		id: ModuleFailedId,
		mdMsg: `
# A required module failed!

The module's top-level code returned an error. Every script waiting on it
receives the same error; the next ` + "`require`" + ` retries it.

## Things you can try:
- Run the failing module directly to see its output
- Run with ` + "`--log-level debug`" + ` to trace resolution and loading`,
	}

	bundleIOIssue = &Issue{
		id: BundleIOId,
		mdMsg: `
# Could not read a script while bundling!

The bundler follows every static ` + "`require`" + ` from the entry script and
reads each file it finds. One of those reads failed.

## Things you can try:
- Check file permissions
- Remove stale references to deleted files`,
	}

	notStandaloneIssue = &Issue{
		id: NotStandaloneId,
		mdMsg: `
# Not a standalone executable!

The file has no embedded script bundle.

## Things you can try:
- Build one first:
~~~
$ crescent build ./main.sh -o app
~~~`,
	}

	corruptMetadataIssue = &Issue{
		id: CorruptMetadataId,
		mdMsg: `
# Corrupt standalone metadata!

The executable carries the standalone marker but the embedded bundle could not
be decoded. The file was probably truncated or modified after it was built.

## Things you can try:
- Rebuild the executable from its sources`,
	}

	incompatibleRuntimeIssue = &Issue{
		id: IncompatibleRuntimeId,
		mdMsg: `
# Incompatible runtime version!

The bundle was produced by a runtime with a different major version.

## Things you can try:
- Rebuild the bundle with this runtime
- Pass ` + "`--base`" + ` to build against a matching host executable`,
	}

	outputOverwritesInputIssue = &Issue{
		id: OutputOverwritesInputId,
		mdMsg: `
# Output would overwrite an input!

The build output path is the entry script or the host executable it reads.

## Things you can try:
- Choose a different ` + "`--output`" + ` path`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

There was an error loading your crescent configuration file.

## Configuration file locations:
- Linux: ` + "`~/.config/crescent/config.cue`" + `
- macOS: ` + "`~/Library/Application Support/crescent/config.cue`" + `
- Windows: ` + "`%APPDATA%\\crescent\\config.cue`" + `

## Things you can try:
- Check the CUE syntax of the file
- Print the effective configuration:
~~~
$ crescent config show
~~~

## Example configuration:
~~~cue
extensions: [".sh", ".bash"]
index_name: "init"
log: { level: "info", format: "text" }
~~~`,
	}

	aliasConfigInvalidIssue = &Issue{
		id: AliasConfigInvalidId,
		mdMsg: `
# Invalid alias file!

A ` + "`.crescentrc`" + ` file could not be parsed and was ignored.

## Expected shape:
~~~json
{ "aliases": { "lib": "./lib", "vendor": "../third_party" } }
~~~

Alias names ` + "`self`" + ` and ` + "`crescent`" + ` are reserved.`,
	}

	aliasConflictIssue = &Issue{
		id: AliasConflictId,
		mdMsg: `
# An alias means different things in different directories!

Nested ` + "`.crescentrc`" + ` files declare the same alias with different
targets, and the script tree uses both. A standalone executable keeps one
alias map for the whole tree, so one of the callers would load the wrong module.

## Things you can try:
- Rename one of the aliases
- Use a relative reference in one of the callers`,
	}

	issues = map[Id]*Issue{
		scriptNotFoundIssue.Id():        scriptNotFoundIssue,
		moduleNotFoundIssue.Id():        moduleNotFoundIssue,
		unknownAliasIssue.Id():          unknownAliasIssue,
		unknownBuiltinIssue.Id():        unknownBuiltinIssue,
		invalidReferenceIssue.Id():      invalidReferenceIssue,
		cyclicRequireIssue.Id():         cyclicRequireIssue,
		moduleFailedIssue.Id():          moduleFailedIssue,
		bundleIOIssue.Id():              bundleIOIssue,
		notStandaloneIssue.Id():         notStandaloneIssue,
		corruptMetadataIssue.Id():       corruptMetadataIssue,
		incompatibleRuntimeIssue.Id():   incompatibleRuntimeIssue,
		outputOverwritesInputIssue.Id(): outputOverwritesInputIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		aliasConfigInvalidIssue.Id():    aliasConfigInvalidIssue,
		aliasConflictIssue.Id():         aliasConflictIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
