// Package multicloud is the entry point for applications. A Context binds
// a service name to its Environment, Network and Backend, built from one
// section of a YAML configuration document:
//
//	myservice:
//	  environment:
//	    DATA_ROOT: /srv/data
//	  env_file: ~/.config/myservice.env
//	  network:
//	    cacerts: ~/certs/corp-root.pem
//	    verify: true
//	  backend:
//	    type: local
//	    basedir: ${env.DATA_ROOT}
//
// Typical use:
//
//	doc, err := multicloud.LoadConfig("")
//	if err != nil {
//	    return err
//	}
//	mc, err := multicloud.New("myservice", doc)
//	if err != nil {
//	    return err
//	}
//	obj, err := mc.Object("reports/latest.csv")
//
// With a nil document the backend is chosen from the detected runtime.
// Third-party backends are added with Register before any Context is
// created.
package multicloud
