//go:build !unix

package launcher

func helperPlatform(args []string) int {
	return 2
}
