// Package thinjar splits Spring Boot fat jars into thin jars and a shared,
// content-addressed library cache.
//
// A fat jar nests every dependency under the directory named by the
// Spring-Boot-Lib manifest attribute. Thin copies the application entries
// into a new archive, stores each nested library under the SHA-256 of its
// bytes, and appends META-INF/spring.lib.index listing one
// "/<path>=<hash>" line per library. Identical libraries from any number of
// jars occupy one cache entry.
//
// Basic usage:
//
//	res, err := thinjar.Thin(ctx, "app.jar", "app-thin.jar", "libs.zip")
//	fmt.Println(res.Libraries(), "libraries extracted")
//
//	// Put it back together
//	_, err = thinjar.Restore(ctx, "app-thin.jar", "libs.zip", "app.jar")
//
// A directory cache can be shared by concurrent runs:
//
//	jobs := []thinjar.Job{{Source: "a.jar", Target: "out/a.jar"}, {Source: "b.jar", Target: "out/b.jar"}}
//	results, err := thinjar.ThinAll(ctx, "/var/cache/libs", jobs, 4)
//
// Cache entries live at "<first 2 hex>/<remaining 62 hex>.jar" in either form.
package thinjar
