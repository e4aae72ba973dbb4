package focus

// Marker classes and the injected style sheet.
const (
	FocusedClass       = "serpnav-focused"
	ResultFocusedClass = "serpnav-result-focused"
	StyleSheetID       = "serpnav-styles"

	markedSelector = "." + FocusedClass + ", ." + ResultFocusedClass
)

const styleSheet = `
.serpnav-focused {
  outline: none !important;
  box-shadow: 0 0 0 2px #4285f4 inset !important;
  border-radius: 8px !important;
  background-color: rgba(66, 133, 244, 0.1) !important;
  overflow: clip !important;
  position: relative !important;
}

.serpnav-result-focused {
  background-color: rgba(66, 133, 244, 0.05) !important;
  border-radius: 8px !important;
  box-shadow: 0 0 0 1px rgba(66, 133, 244, 0.2) inset !important;
  overflow: clip !important;
}
`

// containerRoles is tried in order; the first role with an inclusive
// ancestor of the entry wins.
var containerRoles = []string{
	".g",
	".tF2Cxc",
	".yuRUbf",
	".hlcw0c",
	".N54PNb",
	".MjjYud",
	".g-blk",
	".rGhul",
	".kp-blk",
	".isv-r",
	".VFACy",
	".Q4LuWd",
	".SoaBEf",
	".WlydOe",
	".mCBkyc",
	".ftSUBd",
	".Y3v8qd",
	".xTFaxe",
	".dbsr",
}

// blockDisplays are the computed display values accepted by the
// ancestor fallback.
var blockDisplays = map[string]bool{"block": true, "flex": true, "grid": true}
