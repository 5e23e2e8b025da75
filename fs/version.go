package fs

// Version of the program
const Version = "v0.2.0"
