// Package manifest reads descriptors from YAML or TOML files.
//
// A YAML descriptor looks like:
//
//	id: app
//	codebase: https://cdn.example.com/app/
//	artifacts:
//	  - href: app.jar
//	    main: true
//	bundles:
//	  - name: reports
//	    download: lazy
//	    artifacts:
//	      - href: reports.jar
//	      - href: fonts-de.jar
//	        locale: [de]
//	rules:
//	  - pattern: com.acme.reports.*
//	    bundle: reports
//	    recursive: true
//	extensions:
//	  - href: ../shared/charts.yaml
//
// Artifact hrefs resolve against the codebase, or against the file's
// directory when there is none. Extension hrefs always resolve against the
// referencing file.
package manifest
