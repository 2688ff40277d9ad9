package cfg

import "os"

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getOrDefault(values map[string]string, key, defaultValue string) string {
	if v, ok := values[key]; ok && v != "" {
		return v
	}
	return defaultValue
}
