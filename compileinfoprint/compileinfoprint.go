// compileinfoprint is imported for the side effect of printing the build
// provenance to os.Stderr at startup
package compileinfoprint

import "github.com/carbocation/neutcurve/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
